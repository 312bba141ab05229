package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/models"
)

type countingScroller struct {
	total atomic.Int64
	calls atomic.Int64
}

func (c *countingScroller) ScrollBy(dy int) {
	c.total.Add(int64(dy))
	c.calls.Add(1)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestAutoScrollDirection(t *testing.T) {
	a := NewAutoScroller(&countingScroller{}, DefaultAutoScroll())
	tests := []struct {
		y    float64
		want int
	}{
		{0, -1},
		{99, -1},
		{100, 0},
		{400, 0},
		{700, 0},
		{701, 1},
		{800, 1},
	}
	for _, tt := range tests {
		if got := a.Direction(tt.y, 800); got != tt.want {
			t.Errorf("Direction(%v) = %d, want %d", tt.y, got, tt.want)
		}
	}
}

func TestAutoScrollRunsOnlyNearEdges(t *testing.T) {
	target := &countingScroller{}
	a := NewAutoScroller(target, AutoScrollConfig{Threshold: 100, Step: 10, Tick: time.Millisecond})
	defer a.Stop()

	a.Update(790, 800)
	waitFor(t, func() bool { return target.calls.Load() >= 3 })
	if target.total.Load() <= 0 {
		t.Errorf("scrolling down should add, total = %d", target.total.Load())
	}

	a.Update(400, 800)
	if a.Running() {
		t.Fatal("leaving the edge band should stop the ticker")
	}
	calls := target.calls.Load()
	time.Sleep(5 * time.Millisecond)
	if target.calls.Load() != calls {
		t.Error("scrolled after stop")
	}

	a.Update(10, 800)
	before := target.total.Load()
	waitFor(t, func() bool { return target.total.Load() < before })
	a.Stop()
	a.Stop()
}

func TestSchedulerStopsScrollingOnEveryExit(t *testing.T) {
	exits := map[string]func(s *Scheduler){
		"drop": func(s *Scheduler) {
			s.Drop(context.Background(), calendar.MustParseDate("2024-06-10"))
		},
		"drag end": func(s *Scheduler) { s.EndDrag() },
		"close":    func(s *Scheduler) { s.Close() },
	}
	for name, exit := range exits {
		t.Run(name, func(t *testing.T) {
			offset := &Offset{}
			cfg := DefaultConfig()
			cfg.AutoScroll.Tick = time.Millisecond
			s := New(&fakeWriter{}, &fakeNotifier{}, offset, zap.NewNop(), metrics.New(), cfg)
			s.SetView(admin, project)
			s.ApplyTasks([]models.Task{{ID: "T1", ProjectID: "P1"}})

			s.PointerMoved(790, 800)
			if s.Scrolling() {
				t.Fatal("no scrolling before a drag starts")
			}
			if _, err := s.StartDrag("T1"); err != nil {
				t.Fatal(err)
			}
			s.PointerMoved(790, 800)
			waitFor(t, func() bool { return offset.Y() > 0 })

			exit(s)
			if s.Scrolling() {
				t.Error("auto-scroll still running")
			}
		})
	}
}

func TestOffsetClampsAtTop(t *testing.T) {
	var o Offset
	o.ScrollBy(-10)
	o.ScrollBy(25)
	o.ScrollBy(-5)
	if o.Y() != 20 {
		t.Errorf("Y = %d", o.Y())
	}
}
