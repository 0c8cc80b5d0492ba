package animation

import (
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CounterDuration is how long a counter takes to reach its target.
const CounterDuration = 2 * time.Second

var numberPrinter = message.NewPrinter(language.English)

// EaseOutQuart maps progress p in [0,1] to 1-(1-p)^4.
func EaseOutQuart(p float64) float64 {
	p = math.Min(math.Max(p, 0), 1)
	return 1 - math.Pow(1-p, 4)
}

// Counter animates a displayed number from 0 to Target.
type Counter struct {
	Target   int
	Start    time.Time
	Duration time.Duration
}

// Value returns the number to display at now and whether the animation is done.
func (c Counter) Value(now time.Time) (value int, done bool) {
	d := c.Duration
	if d <= 0 {
		d = CounterDuration
	}
	elapsed := now.Sub(c.Start)
	if elapsed >= d {
		return c.Target, true
	}
	p := float64(elapsed) / float64(d)
	return int(math.Floor(EaseOutQuart(p) * float64(c.Target))), false
}

// FormatCount renders n with English thousands separators.
func FormatCount(n int) string {
	return numberPrinter.Sprintf("%d", n)
}
