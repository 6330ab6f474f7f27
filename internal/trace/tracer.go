package trace

import "log/slog"

// traceChannelBuffer is how many turn writes can queue before the
// background drain goroutine catches up to the store.
const traceChannelBuffer = 64

type turnMsg struct {
	callID string
	index  int
	role   string
	text   string
}

// Tracer writes a call's turns asynchronously via a buffered channel, so
// the turn pipeline does not wait on a database write unless
// traceChannelBuffer writes are already queued. All methods are nil-safe
// (no-op on nil receiver).
type Tracer struct {
	store  *Store
	callID string
	ch     chan turnMsg
	done   chan struct{}
}

// NewTracer creates a tracer bound to callID. Launches a background drain
// goroutine; callers MUST call Close() when the call ends to flush pending
// writes and stop the goroutine.
func NewTracer(store *Store, callID string) *Tracer {
	t := &Tracer{
		store:  store,
		callID: callID,
		ch:     make(chan turnMsg, traceChannelBuffer),
		done:   make(chan struct{}),
	}
	go t.drain()
	return t
}

func (t *Tracer) drain() {
	defer close(t.done)
	for m := range t.ch {
		if err := t.store.AppendTurn(m.callID, m.index, m.role, m.text); err != nil {
			slog.Warn("trace: append turn failed", "call_id", m.callID, "err", err)
		}
	}
}

// RecordTurn queues one conversation turn for persistence.
func (t *Tracer) RecordTurn(index int, role, text string) {
	if t == nil {
		return
	}
	t.ch <- turnMsg{callID: t.callID, index: index, role: role, text: text}
}

// Close drains pending writes and shuts down the background goroutine.
func (t *Tracer) Close() {
	if t == nil {
		return
	}
	close(t.ch)
	<-t.done
}
