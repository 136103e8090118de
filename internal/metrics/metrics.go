package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/matheus3301/orderbot/internal/intake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics counts intake pipeline results. It implements intake.Recorder.
type Metrics struct {
	reg            *prometheus.Registry
	Messages       *prometheus.CounterVec
	OrdersAccepted prometheus.Counter
	OrderItems     prometheus.Counter
	MirrorFailures prometheus.Counter
}

var _ intake.Recorder = (*Metrics)(nil)

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderbot_messages_total",
			Help: "Chat messages handled by the intake pipeline, by outcome.",
		}, []string{"outcome"}),
		OrdersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderbot_orders_accepted_total",
			Help: "Orders stored.",
		}),
		OrderItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderbot_order_items_total",
			Help: "Item lines stored across all orders.",
		}),
		MirrorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orderbot_mirror_failures_total",
			Help: "Orders that could not be appended to the spreadsheet.",
		}),
	}
	reg.MustRegister(m.Messages, m.OrdersAccepted, m.OrderItems, m.MirrorFailures)
	return m
}

func (m *Metrics) MessageHandled(outcome intake.Outcome) {
	m.Messages.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) OrderAccepted(items int) {
	m.OrdersAccepted.Inc()
	m.OrderItems.Add(float64(items))
}

func (m *Metrics) MirrorFailed() {
	m.MirrorFailures.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Server exposes /metrics over HTTP.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

// NewServer binds the metrics handler to addr. An empty addr yields a nil
// server, and Start and Stop on a nil server do nothing.
func NewServer(addr string, m *Metrics, logger *zap.Logger) *Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger,
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	_ = s.srv.Shutdown(ctx)
}
