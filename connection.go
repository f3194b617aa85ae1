package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a Connection.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusQuerying
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusQuerying:
		return "querying"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// StatusObserver is told about every status transition, after it happened.
type StatusObserver func(c *Connection, status Status, reason string)

// inflightQuery tracks the single running query. settled is claimed, under
// Connection.mu, by whichever of response or abort gets there first.
type inflightQuery struct {
	query   string
	cancel  context.CancelFunc
	done    chan struct{} // transport call returned
	aborted chan struct{} // abort finished resetting status
	settled bool
}

// Connection owns the transport to one endpoint. It allows at most one query
// in flight; connections for different endpoints never share locks.
type Connection struct {
	cfg      ConnectionConfig
	dial     Dialer
	log      *slog.Logger
	observer StatusObserver

	mu        sync.Mutex
	status    Status
	reason    string
	sessionID string
	transport Transport
	dialing   *dialAttempt
	inflight  *inflightQuery
	startedAt time.Time
}

// dialAttempt is one call to the Dialer. Waiters read err once done is closed.
type dialAttempt struct {
	done chan struct{}
	err  error
}

func NewConnection(cfg ConnectionConfig, dial Dialer, log *slog.Logger, observer StatusObserver) *Connection {
	return &Connection{
		cfg:      cfg.clone(),
		dial:     dial,
		log:      log.With("label", cfg.Label),
		observer: observer,
	}
}

func (c *Connection) Label() string            { return c.cfg.Label }
func (c *Connection) Config() ConnectionConfig { return c.cfg.clone() }

// Status returns the current state and, for StatusFailed, the reason.
func (c *Connection) Status() (Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.reason
}

// SessionID identifies the current dial; it changes on every reconnect.
func (c *Connection) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// RunningQuery returns the query in flight and when it started.
func (c *Connection) RunningQuery() (string, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight == nil {
		return "", time.Time{}, false
	}
	return c.inflight.query, c.startedAt, true
}

func (c *Connection) notify(status Status, reason string) {
	if c.observer != nil {
		c.observer(c, status, reason)
	}
}

// Open dials the endpoint unless the connection is already usable.
// Concurrent callers share a single dial. Recovering from StatusFailed goes
// through here.
func (c *Connection) Open(ctx context.Context) error {
	c.mu.Lock()
	switch c.status {
	case StatusConnected, StatusQuerying:
		c.mu.Unlock()
		return nil
	case StatusConnecting:
		d := c.dialing
		c.mu.Unlock()
		select {
		case <-d.done:
			return d.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	stale := c.transport
	c.transport = nil
	c.status = StatusConnecting
	c.reason = ""
	d := &dialAttempt{done: make(chan struct{})}
	c.dialing = d
	c.mu.Unlock()
	c.notify(StatusConnecting, "")

	if stale != nil {
		if err := stale.Close(); err != nil {
			c.log.Debug("closing stale transport", "error", err)
		}
	}

	t, err := c.dial(ctx, c.cfg)

	c.mu.Lock()
	if c.dialing != d {
		// Closed while dialing, and possibly redialed since.
		d.err = fmt.Errorf("%w: %s closed while connecting", ErrConnectionNotOpen, c.cfg.Label)
		close(d.done)
		c.mu.Unlock()
		if t != nil {
			t.Close()
		}
		c.log.Debug("discarding superseded dial")
		return d.err
	}
	if err != nil {
		c.status = StatusFailed
		c.reason = err.Error()
		d.err = &TransportError{Label: c.cfg.Label, Op: "connect", Err: err}
	} else {
		c.transport = t
		c.status = StatusConnected
		c.sessionID = uuid.NewString()
	}
	status, reason, session := c.status, c.reason, c.sessionID
	c.dialing = nil
	close(d.done)
	c.mu.Unlock()

	if d.err != nil {
		c.log.Warn("connect failed", "error", d.err)
	} else {
		c.log.Info("connected", "session", session, "address", c.cfg.Address())
	}
	c.notify(status, reason)
	return d.err
}

type queryReply struct {
	res *Result
	err error
}

// Query sends one query and waits for its outcome. It fails fast with
// ErrQueryInFlight if another query is running, and returns ErrQueryAborted
// when Abort or Close won the race against the response.
func (c *Connection) Query(ctx context.Context, query string) (*Result, error) {
	c.mu.Lock()
	switch c.status {
	case StatusConnected:
	case StatusQuerying:
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrQueryInFlight, c.cfg.Label)
	default:
		status := c.status
		c.mu.Unlock()
		return nil, &TransportError{
			Label: c.cfg.Label,
			Op:    "query",
			Err:   fmt.Errorf("%w (%s)", ErrConnectionNotOpen, status),
		}
	}

	qctx, cancel := context.WithCancel(ctx)
	iq := &inflightQuery{
		query:   query,
		cancel:  cancel,
		done:    make(chan struct{}),
		aborted: make(chan struct{}),
	}
	c.inflight = iq
	c.startedAt = time.Now()
	c.status = StatusQuerying
	t := c.transport
	c.mu.Unlock()
	c.notify(StatusQuerying, "")

	replies := make(chan queryReply, 1)
	go func() {
		defer close(iq.done)
		res, err := t.Query(qctx, query)
		replies <- queryReply{res: res, err: err}
	}()

	select {
	case r := <-replies:
		c.mu.Lock()
		if iq.settled {
			c.mu.Unlock()
			<-iq.aborted
			return nil, fmt.Errorf("%w: %s", ErrQueryAborted, c.cfg.Label)
		}
		iq.settled = true
		c.inflight = nil
		cancel()

		failed := isTransportFailure(r.err)
		if failed {
			c.status = StatusFailed
			c.reason = r.err.Error()
		} else {
			c.status = StatusConnected
		}
		status, reason := c.status, c.reason
		c.mu.Unlock()
		c.notify(status, reason)

		if failed {
			return nil, &TransportError{Label: c.cfg.Label, Op: "query", Err: r.err}
		}
		return r.res, r.err

	case <-iq.aborted:
		return nil, fmt.Errorf("%w: %s", ErrQueryAborted, c.cfg.Label)
	}
}

// Abort cancels the running query, if any, and reports whether there was one.
// It waits up to timeout for the transport to acknowledge; after that the
// local status is reset anyway and the late response is discarded.
func (c *Connection) Abort(timeout time.Duration) bool {
	c.mu.Lock()
	iq := c.inflight
	if iq == nil || iq.settled {
		c.mu.Unlock()
		return false
	}
	iq.settled = true
	c.mu.Unlock()

	iq.cancel()
	select {
	case <-iq.done:
	case <-time.After(timeout):
		c.log.Warn("backend did not acknowledge cancel, resetting local state", "timeout", timeout)
	}

	c.mu.Lock()
	if c.inflight == iq {
		c.inflight = nil
		if c.status == StatusQuerying {
			c.status = StatusConnected
		}
	}
	status, reason := c.status, c.reason
	c.mu.Unlock()
	close(iq.aborted)

	c.log.Info("query aborted")
	c.notify(status, reason)
	return true
}

// Close tears down the transport. A running query is cancelled and its
// caller sees ErrQueryAborted.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.status == StatusDisconnected && c.transport == nil {
		c.mu.Unlock()
		return nil
	}
	t := c.transport
	c.transport = nil
	iq := c.inflight
	c.inflight = nil
	ownAbort := iq != nil && !iq.settled
	if ownAbort {
		iq.settled = true
	}
	c.status = StatusDisconnected
	c.reason = ""
	c.dialing = nil
	c.mu.Unlock()

	if ownAbort {
		iq.cancel()
		close(iq.aborted)
	}

	var err error
	if t != nil {
		err = t.Close()
	}
	c.log.Info("disconnected")
	c.notify(StatusDisconnected, "")
	return err
}
