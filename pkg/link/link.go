// Package link monitors the health of the serial link to a node by
// pinging it periodically and reporting state transitions.
package link

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// State of the monitored link.
type State uint8

const (
	// StateUnknown means no ping has completed yet.
	StateUnknown State = iota
	StateUp
	StateDown
)

func (s State) String() string {
	switch s {
	case StateUp:
		return "up"
	case StateDown:
		return "down"
	default:
		return "unknown"
	}
}

// Event types delivered to the event callback.
const (
	EventNone uint8 = iota
	// EventUp fires when the node answers after being unknown or down.
	EventUp
	// EventDown fires when a ping fails after the node was up or unknown.
	EventDown
)

// Pinger is the slice of the transaction engine the monitor needs.
// *transaction.Engine and *s3p.Manager both satisfy it.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// EventCallback is invoked on every state transition with the new state
// and, for EventUp, the observed round-trip time.
type EventCallback func(event uint8, state State, rtt time.Duration)

// Monitor pings a node at a fixed period and tracks link state. Because
// the protocol allows a single outstanding request, the monitor must be
// the only user of the engine while running.
type Monitor struct {
	pinger Pinger
	period time.Duration
	logger *log.Logger

	mu       sync.Mutex
	state    State
	lastRTT  time.Duration
	callback EventCallback
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewMonitor creates a stopped Monitor. logger may be nil.
func NewMonitor(pinger Pinger, period time.Duration, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Monitor{pinger: pinger, period: period, logger: logger}
}

// OnEvent registers the transition callback. Must be called before Start.
func (m *Monitor) OnEvent(cb EventCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callback = cb
}

// State returns the current link state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastRTT returns the round-trip time of the most recent successful ping.
func (m *Monitor) LastRTT() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRTT
}

// Start launches the ping loop. The first ping fires immediately.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.period)
		defer ticker.Stop()
		m.pingOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.pingOnce(ctx)
			}
		}
	}()
}

// Stop terminates the ping loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) pingOnce(ctx context.Context) {
	rtt, err := m.pinger.Ping(ctx)
	if ctx.Err() != nil {
		return
	}

	m.mu.Lock()
	prev := m.state
	event := EventNone
	if err != nil {
		if prev != StateDown {
			m.state = StateDown
			event = EventDown
		}
	} else {
		m.lastRTT = rtt
		if prev != StateUp {
			m.state = StateUp
			event = EventUp
		}
	}
	state := m.state
	cb := m.callback
	m.mu.Unlock()

	if err != nil {
		m.logger.Warnf("[LINK] ping failed: %v", err)
	} else {
		m.logger.Debugf("[LINK] ping ok, rtt=%v", rtt)
	}
	if event != EventNone && cb != nil {
		cb(event, state, rtt)
	}
}
