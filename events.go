package main

import (
	"sync"
	"time"
)

// EventKind names a state notification for UI collaborators.
type EventKind string

const (
	EventActiveConnectionChanged EventKind = "activeConnectionChanged"
	EventConnectionStatus        EventKind = "connectionStatusChanged"
	EventQueryModeChanged        EventKind = "queryModeChanged"
	EventLimitQueryChanged       EventKind = "limitQueryChanged"
	EventQueryStarted            EventKind = "queryStarted"
	EventQueryFinished           EventKind = "queryFinished"
	EventQueryAborted            EventKind = "queryAborted"
	EventConfigsChanged          EventKind = "configsChanged"
)

// Query outcomes carried by EventQueryFinished
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
	OutcomeAborted  = "aborted"
)

// Event is emitted after the transition it describes has completed. Only the
// fields relevant to Kind are set.
type Event struct {
	Kind         EventKind     `json:"kind"`
	Time         time.Time     `json:"time"`
	Label        string        `json:"label,omitempty"`
	Session      string        `json:"session,omitempty"`
	Status       string        `json:"status,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	Mode         QueryMode     `json:"mode,omitempty"`
	LimitEnabled *bool         `json:"limitEnabled,omitempty"`
	Query        string        `json:"query,omitempty"`
	Outcome      string        `json:"outcome,omitempty"`
	Error        string        `json:"error,omitempty"`
	Rows         int           `json:"rows,omitempty"`
	Truncated    bool          `json:"truncated,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	HistoryID    string        `json:"historyId,omitempty"`
}

// Listener receives events. It runs on the goroutine that caused the
// transition and must not block.
type Listener func(Event)

type eventBus struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

func (b *eventBus) subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]Listener)
	}
	id := b.next
	b.next++
	b.listeners[id] = l
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *eventBus) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	ls := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.RUnlock()
	for _, l := range ls {
		l(ev)
	}
}
