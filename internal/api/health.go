package api

import (
	"context"

	"github.com/matheus3301/orderbot/internal/bus"
	"github.com/matheus3301/orderbot/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reporting whether orders are
// being taken. The empty service name reports daemon liveness.
const ServiceName = "orderbot.Intake"

// HealthReporter mirrors the bot's activity state into the gRPC health
// service: SERVING while active, NOT_SERVING while inactive.
type HealthReporter struct {
	server  *health.Server
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHealthReporter creates a reporter seeded from the machine's current
// state.
func NewHealthReporter(machine *status.Machine, b *bus.Bus, logger *zap.Logger) *HealthReporter {
	r := &HealthReporter{
		server:  health.NewServer(),
		machine: machine,
		bus:     b,
		logger:  logger,
	}
	r.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	r.apply(machine.Current())
	return r
}

// Server returns the health service to register on a gRPC server.
func (r *HealthReporter) Server() *health.Server {
	return r.server
}

// Start follows bot.state_changed events.
func (r *HealthReporter) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	ch, unsub := r.bus.Subscribe(bus.KindStateChanged, 16)
	// Catch a change made between construction and subscription.
	r.apply(r.machine.Current())

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				change, ok := evt.Payload.(status.StatusChange)
				if !ok {
					continue
				}
				r.logger.Info("bot state changed",
					zap.String("from", string(change.From)),
					zap.String("to", string(change.To)),
					zap.String("by", change.By))
				r.apply(change.To)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription and marks every service NOT_SERVING.
func (r *HealthReporter) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
	r.server.Shutdown()
}

func (r *HealthReporter) apply(s status.State) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s == status.Active {
		st = healthpb.HealthCheckResponse_SERVING
	}
	r.server.SetServingStatus(ServiceName, st)
}
