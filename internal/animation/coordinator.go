// Package animation coordinates the page's presentation effects: scroll
// driven classes, reveal-on-scroll, one-shot counters and progress bars.
// Effects are purely cosmetic and are applied through a View.
package animation

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// View applies presentation changes to page elements.
type View interface {
	SetClass(elementID, class string, on bool)
	SetStyle(elementID, property, value string)
	SetText(elementID, text string)
	SetAttribute(elementID, name, value string)
}

// Kind selects what happens when an observed element becomes visible.
type Kind string

const (
	KindReveal   Kind = "reveal"
	KindCounter  Kind = "counter"
	KindProgress Kind = "progress"
	KindLazy     Kind = "lazy-image"
)

// Target is an element observed for visibility.
type Target struct {
	ID    string
	Kind  Kind
	Value int    // counter target
	Width string // progress width, "100%" when empty
	Src   string // lazy image source
}

// Config holds the element ids and thresholds used by the coordinator.
type Config struct {
	NavID       string
	ScrollTopID string
	HeroID      string

	NavScrolledAfter float64
	ScrollTopAfter   float64
	ParallaxRate     float64
	ThrottleInterval time.Duration
	Threshold        float64
	RootMargin       Margin
	CounterDuration  time.Duration
}

// DefaultConfig matches the concierge landing page.
func DefaultConfig() Config {
	return Config{
		NavID:            "luxury-nav",
		ScrollTopID:      "scroll-to-top",
		HeroID:           "concierge-hero",
		NavScrolledAfter: 100,
		ScrollTopAfter:   500,
		ParallaxRate:     -0.5,
		ThrottleInterval: 16 * time.Millisecond,
		Threshold:        0.1,
		RootMargin:       Margin{Bottom: -50},
		CounterDuration:  CounterDuration,
	}
}

// Coordinator turns scroll and visibility updates into View changes.
type Coordinator struct {
	cfg  Config
	view View
	now  func() time.Time

	mu          sync.Mutex
	lastScroll  time.Time
	navScrolled bool
	topVisible  bool
	observed    map[string]Target
	counters    map[string]Counter
	animated    map[string]bool
}

// NewCoordinator returns a coordinator using now as its clock (time.Now if nil).
func NewCoordinator(cfg Config, view View, now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		cfg:      cfg,
		view:     view,
		now:      now,
		observed: make(map[string]Target),
		counters: make(map[string]Counter),
		animated: make(map[string]bool),
	}
}

// OnScroll applies scroll-position effects. Calls arriving within the
// throttle interval of the last handled call are dropped; the return value
// reports whether this call was handled.
func (c *Coordinator) OnScroll(scrollY float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastScroll.IsZero() && now.Sub(c.lastScroll) < c.cfg.ThrottleInterval {
		return false
	}
	c.lastScroll = now

	if scrolled := scrollY > c.cfg.NavScrolledAfter; scrolled != c.navScrolled {
		c.navScrolled = scrolled
		c.view.SetClass(c.cfg.NavID, "nav-scrolled", scrolled)
	}
	if visible := scrollY > c.cfg.ScrollTopAfter; visible != c.topVisible {
		c.topVisible = visible
		c.view.SetClass(c.cfg.ScrollTopID, "visible", visible)
	}
	offset := scrollY * c.cfg.ParallaxRate
	if offset == 0 {
		offset = 0 // drop negative zero
	}
	c.view.SetStyle(c.cfg.HeroID, "transform", fmt.Sprintf("translateY(%gpx)", offset))
	return true
}

// Observe starts watching t. Counters that are running or already ran are
// not observed again.
func (c *Coordinator) Observe(t Target) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Kind == KindCounter {
		if _, running := c.counters[t.ID]; running || c.animated[t.ID] {
			return
		}
	}
	c.observed[t.ID] = t
}

// Update checks every observed element against the viewport and triggers
// those crossing the threshold. It returns the triggered ids, sorted.
func (c *Coordinator) Update(viewport Rect, bounds map[string]Rect) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	root := c.cfg.RootMargin.apply(viewport)
	var triggered []string
	for id, t := range c.observed {
		box, ok := bounds[id]
		if !ok {
			continue
		}
		if IntersectionRatio(box, root) < c.cfg.Threshold {
			continue
		}
		c.trigger(t)
		delete(c.observed, id)
		triggered = append(triggered, id)
	}
	sort.Strings(triggered)
	return triggered
}

func (c *Coordinator) trigger(t Target) {
	switch t.Kind {
	case KindReveal:
		c.view.SetClass(t.ID, "revealed", true)
	case KindCounter:
		c.counters[t.ID] = Counter{Target: t.Value, Start: c.now(), Duration: c.cfg.CounterDuration}
		c.view.SetText(t.ID, FormatCount(0))
	case KindProgress:
		width := t.Width
		if width == "" {
			width = "100%"
		}
		c.view.SetStyle(t.ID, "width", width)
	case KindLazy:
		c.view.SetAttribute(t.ID, "src", t.Src)
		c.view.SetClass(t.ID, "lazy", false)
	}
}

// Tick advances running counters. It returns how many are still running.
func (c *Coordinator) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, counter := range c.counters {
		value, done := counter.Value(now)
		c.view.SetText(id, FormatCount(value))
		if done {
			c.view.SetClass(id, "animated", true)
			c.animated[id] = true
			delete(c.counters, id)
		}
	}
	return len(c.counters)
}

// Animated reports whether the counter with id has finished.
func (c *Coordinator) Animated(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.animated[id]
}

// Observed returns the number of elements still being watched.
func (c *Coordinator) Observed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observed)
}

// StaggerClass returns the stagger-N class for the index-th element of a
// group animated with group steps.
func StaggerClass(index, group int) string {
	if group <= 0 {
		group = 1
	}
	return fmt.Sprintf("stagger-%d", index%group+1)
}
