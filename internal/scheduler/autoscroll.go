package scheduler

import (
	"sync"
	"time"
)

// Scroller is the scroll container the auto-scroller drives.
type Scroller interface {
	ScrollBy(dy int)
}

// AutoScrollConfig tunes edge scrolling during a drag.
type AutoScrollConfig struct {
	Threshold float64       // distance from an edge that starts scrolling, px
	Step      int           // px per tick
	Tick      time.Duration // interval between steps
}

func DefaultAutoScroll() AutoScrollConfig {
	return AutoScrollConfig{Threshold: 100, Step: 10, Tick: 16 * time.Millisecond}
}

// AutoScroller scrolls target toward the viewport edge the pointer is near.
// The ticker goroutine only runs while the pointer is inside an edge band;
// Stop ends it on every exit path.
type AutoScroller struct {
	target Scroller
	cfg    AutoScrollConfig

	mu   sync.Mutex
	dir  int
	stop chan struct{}
	done chan struct{}
}

func NewAutoScroller(target Scroller, cfg AutoScrollConfig) *AutoScroller {
	if cfg.Tick <= 0 {
		cfg = DefaultAutoScroll()
	}
	return &AutoScroller{target: target, cfg: cfg}
}

// Direction is -1 near the top edge, +1 near the bottom, 0 elsewhere.
func (a *AutoScroller) Direction(pointerY, viewportHeight float64) int {
	switch {
	case pointerY < a.cfg.Threshold:
		return -1
	case pointerY > viewportHeight-a.cfg.Threshold:
		return 1
	}
	return 0
}

// Update moves the pointer. Entering an edge band starts the ticker and
// leaving it stops the ticker.
func (a *AutoScroller) Update(pointerY, viewportHeight float64) {
	dir := a.Direction(pointerY, viewportHeight)
	if dir == 0 {
		a.Stop()
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.dir = dir
	if a.stop != nil {
		return
	}
	a.stop = make(chan struct{})
	a.done = make(chan struct{})
	go a.run(a.stop, a.done)
}

func (a *AutoScroller) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.mu.Lock()
			dy := a.dir * a.cfg.Step
			a.mu.Unlock()
			a.target.ScrollBy(dy)
		}
	}
}

// Stop cancels scrolling and waits for the ticker goroutine to exit. It is
// safe to call when not running.
func (a *AutoScroller) Stop() {
	a.mu.Lock()
	stop, done := a.stop, a.done
	a.stop, a.done = nil, nil
	a.dir = 0
	a.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// Running reports whether the ticker goroutine is active.
func (a *AutoScroller) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stop != nil
}

// Offset is a Scroller that accumulates a vertical scroll position,
// clamped at zero.
type Offset struct {
	mu sync.Mutex
	y  int
}

func (o *Offset) ScrollBy(dy int) {
	o.mu.Lock()
	o.y = max(0, o.y+dy)
	o.mu.Unlock()
}

func (o *Offset) Y() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.y
}
