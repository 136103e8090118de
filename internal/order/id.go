package order

import (
	"fmt"
	"math/rand"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the zone order IDs and order dates are rendered in.
const DefaultTimezone = "Asia/Singapore"

// DateLayout is the order_date format stored with each order (dd/mm/yy HH:MM).
const DateLayout = "02/01/06 15:04"

// Generator produces order IDs and order dates in a fixed location.
type Generator struct {
	Location *time.Location
	Clock    func() time.Time
	Rand     func(n int) int
}

// NewGenerator returns a generator for the named IANA zone. An empty name
// selects DefaultTimezone.
func NewGenerator(timezone string) (*Generator, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return &Generator{Location: loc, Clock: time.Now, Rand: rand.Intn}, nil
}

func (g *Generator) now() time.Time {
	clock := g.Clock
	if clock == nil {
		clock = time.Now
	}
	loc := g.Location
	if loc == nil {
		loc = time.Local
	}
	return clock().In(loc)
}

// NewID returns an identifier of the form DDMMYY-RRRRRR. The random suffix is
// uniform over [100000, 999999]; uniqueness is not checked.
func (g *Generator) NewID() string {
	intn := g.Rand
	if intn == nil {
		intn = rand.Intn
	}
	return fmt.Sprintf("%s-%06d", g.now().Format("020106"), 100000+intn(900000))
}

// OrderDate returns the current local time formatted with DateLayout.
func (g *Generator) OrderDate() string {
	return g.now().Format(DateLayout)
}
