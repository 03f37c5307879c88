package link

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePinger scripts successive ping outcomes.
type fakePinger struct {
	mu      sync.Mutex
	results []error
	calls   int
}

func (f *fakePinger) Ping(ctx context.Context) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.calls < len(f.results) {
		err = f.results[f.calls]
	} else if len(f.results) > 0 {
		err = f.results[len(f.results)-1]
	}
	f.calls++
	if err != nil {
		return 0, err
	}
	return time.Millisecond, nil
}

func waitForState(t *testing.T, m *Monitor, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("link never reached state %v, still %v", want, m.State())
}

func TestMonitorReportsUp(t *testing.T) {
	p := &fakePinger{results: []error{nil}}
	m := NewMonitor(p, 5*time.Millisecond, nil)

	var mu sync.Mutex
	var events []uint8
	m.OnEvent(func(event uint8, state State, rtt time.Duration) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	})

	require.Equal(t, StateUnknown, m.State())
	m.Start(context.Background())
	defer m.Stop()

	waitForState(t, m, StateUp)
	assert.Equal(t, time.Millisecond, m.LastRTT())
	mu.Lock()
	require.NotEmpty(t, events)
	assert.Equal(t, EventUp, events[0])
	mu.Unlock()
}

func TestMonitorDetectsDownAndRecovery(t *testing.T) {
	errDead := errors.New("timeout")
	p := &fakePinger{results: []error{nil, errDead, errDead, nil}}
	m := NewMonitor(p, 5*time.Millisecond, nil)

	var mu sync.Mutex
	var events []uint8
	m.OnEvent(func(event uint8, state State, rtt time.Duration) {
		mu.Lock()
		events = append(events, event)
		mu.Unlock()
	})

	m.Start(context.Background())
	defer m.Stop()

	waitForState(t, m, StateUp)
	waitForState(t, m, StateDown)
	waitForState(t, m, StateUp)

	mu.Lock()
	assert.Equal(t, []uint8{EventUp, EventDown, EventUp}, events)
	mu.Unlock()
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	p := &fakePinger{}
	m := NewMonitor(p, 5*time.Millisecond, nil)
	m.Stop() // never started
	m.Start(context.Background())
	waitForState(t, m, StateUp)
	m.Stop()
	m.Stop()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "up", StateUp.String())
	assert.Equal(t, "down", StateDown.String())
}
