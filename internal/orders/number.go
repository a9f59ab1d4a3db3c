package orders

import (
	"fmt"
	"math/rand"
	"time"
)

// NumberGenerator produces human-facing order numbers of the form
// <unix-millis><4-digit random>.
type NumberGenerator struct {
	now  func() time.Time
	rand func(n int) int
}

// NewNumberGenerator returns a generator on the wall clock and a non-crypto RNG.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, rand: rand.Intn}
}

func (g *NumberGenerator) Next() string {
	return fmt.Sprintf("%d%04d", g.now().UnixMilli(), g.rand(10000))
}

// AttemptNumber is the order number sent to the redirect gateway for the
// given registration attempt. The gateway rejects reused numbers, so every
// attempt gets its own suffix.
func AttemptNumber(orderNumber string, attempt int) string {
	return fmt.Sprintf("%s-%d", orderNumber, attempt)
}
