package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/rockguide/internal/log"
	"github.com/teslashibe/rockguide/pkg/audioio"
	"github.com/teslashibe/rockguide/pkg/feedback"
	"github.com/teslashibe/rockguide/pkg/sensor"
	"github.com/teslashibe/rockguide/pkg/sequencer"
	"github.com/teslashibe/rockguide/pkg/target"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type collector struct {
	mu       sync.Mutex
	statuses []Status
}

func (c *collector) Publish(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, s)
}

func (c *collector) all() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Status(nil), c.statuses...)
}

func newRig(t *testing.T, frames ...[]sensor.Body) (*sequencer.Sequencer, *feedback.Controller) {
	t.Helper()
	dev := audioio.NewMockDevice(audioio.DefaultConfig(), log.Nop())
	ctrl, err := feedback.NewController(feedback.DefaultConfig(), dev, feedback.WithLogger(log.Nop()))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	a, err := target.New(r3.Vec{Z: 5}, target.DefaultRadius)
	if err != nil {
		t.Fatalf("target.New: %v", err)
	}
	seq := sequencer.New([]*target.Target{a}, ctrl, sensor.NewScript(frames...), sequencer.WithLogger(log.Nop()))
	return seq, ctrl
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if err := (Config{}).Validate(); err == nil {
		t.Error("Expected error for zero tick interval")
	}
}

func TestRun_StopsOnComplete(t *testing.T) {
	head := r3.Vec{Y: 2}
	far := r3.Vec{Y: -8}
	seq, ctrl := newRig(t,
		[]sensor.Body{sensor.Pose(far, far, head)},
		[]sensor.Body{sensor.Pose(r3.Vec{Z: 5}, far, head)},
		[]sensor.Body{sensor.Pose(far, far, head)},
	)

	col := &collector{}
	r, err := New("test-session", Config{TickInterval: time.Millisecond, StopOnComplete: true}, seq, ctrl,
		WithPublisher(col), WithLogger(log.Nop()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run only returned because of the timeout")
	}

	statuses := col.all()
	if len(statuses) != 2 {
		t.Fatalf("Expected 2 statuses, got %d", len(statuses))
	}
	wantOutcomes := []string{"feedback", "advanced"}
	for i, s := range statuses {
		if s.Outcome != wantOutcomes[i] {
			t.Errorf("status %d outcome %q, want %q", i, s.Outcome, wantOutcomes[i])
		}
		if s.SessionID != "test-session" || s.Ticks != uint64(i+1) {
			t.Errorf("status %d: id %q ticks %d", i, s.SessionID, s.Ticks)
		}
	}
	if !statuses[0].Feedback.PulseActive {
		t.Error("Expected pulse active after the first feedback tick")
	}

	last := r.Status()
	if last.Sequence.State != sequencer.StateComplete {
		t.Errorf("unexpected final status %+v", last)
	}
	if ctrl.PulseActive() {
		t.Error("Expected controller closed with pulse stopped")
	}
}

func TestRun_StopsOnCompleteAfterBodyLeaves(t *testing.T) {
	head := r3.Vec{Y: 2}
	far := r3.Vec{Y: -8}
	// The touching frame is the last one; every later tick is a dropout.
	seq, ctrl := newRig(t,
		[]sensor.Body{sensor.Pose(far, far, head)},
		[]sensor.Body{sensor.Pose(r3.Vec{Z: 5}, far, head)},
	)

	r, err := New("leaves", Config{TickInterval: time.Millisecond, StopOnComplete: true}, seq, ctrl,
		WithLogger(log.Nop()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("Run kept ticking after the sequence completed")
	}
	if r.Ticks() != 2 {
		t.Errorf("Expected 2 ticks, got %d", r.Ticks())
	}
	if !seq.Complete() {
		t.Error("Expected sequence complete")
	}
	if ctrl.PulseActive() {
		t.Error("Expected pulse stopped once Run returned")
	}
}

func TestRun_CancelStops(t *testing.T) {
	seq, ctrl := newRig(t)

	var ticks int
	var mu sync.Mutex
	r, err := New("cancel", Config{TickInterval: time.Millisecond}, seq, ctrl,
		WithPublisher(PublisherFunc(func(s Status) {
			mu.Lock()
			ticks++
			mu.Unlock()
			if s.Outcome != "dropout" {
				t.Errorf("outcome %q, want dropout", s.Outcome)
			}
		})),
		WithLogger(log.Nop()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for r.Ticks() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if ticks < 5 {
		t.Errorf("Expected at least 5 published ticks, got %d", ticks)
	}
	if seq.Index() != 0 {
		t.Errorf("dropouts moved the index to %d", seq.Index())
	}
}

func TestNew_InitialStatus(t *testing.T) {
	seq, ctrl := newRig(t)
	defer ctrl.Close()

	r, err := New("init", DefaultConfig(), seq, ctrl, WithLogger(log.Nop()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	st := r.Status()
	if st.SessionID != "init" || st.Ticks != 0 || st.Sequence.Len != 1 {
		t.Errorf("unexpected initial status %+v", st)
	}
	if r.ID() != "init" {
		t.Errorf("ID() = %q", r.ID())
	}

	if _, err := New("bad", Config{}, seq, ctrl); err == nil {
		t.Error("Expected error for invalid config")
	}
}
