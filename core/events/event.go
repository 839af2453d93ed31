package events

import (
	"math/big"
	"strconv"
	"sync"
)

// Event represents a structured state change emitted by a module.
type Event interface {
	EventType() string
	Record() *Record
}

// Record is the flattened, broadcastable form of an event.
type Record struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Fanout forwards every event to each wrapped emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Buffer retains the most recent records in memory.
type Buffer struct {
	mu          sync.Mutex
	capacity    int
	records     []Record
	subscribers map[int]chan Record
	nextID      int
}

// NewBuffer constructs a buffer retaining up to capacity records.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 256
	}
	return &Buffer{capacity: capacity}
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	rec := evt.Record()
	if rec == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, *rec)
	if overflow := len(b.records) - b.capacity; overflow > 0 {
		b.records = append([]Record(nil), b.records[overflow:]...)
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- *rec:
		default:
			// slow subscriber; drop
		}
	}
}

// Subscribe returns a channel receiving every record emitted after the call.
// Records are dropped for a subscriber whose channel is full. The returned
// function unsubscribes and closes the channel.
func (b *Buffer) Subscribe(size int) (<-chan Record, func()) {
	if size <= 0 {
		size = 64
	}
	ch := make(chan Record, size)
	b.mu.Lock()
	if b.subscribers == nil {
		b.subscribers = make(map[int]chan Record)
	}
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Recent returns up to limit records, newest last. A non-positive limit
// returns everything retained.
func (b *Buffer) Recent(limit int) []Record {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	start := 0
	if limit > 0 && len(b.records) > limit {
		start = len(b.records) - limit
	}
	return append([]Record(nil), b.records[start:]...)
}

// Staged holds events until Commit forwards them to the wrapped emitter or
// Reset drops them.
type Staged struct {
	mu     sync.Mutex
	next   Emitter
	staged []Event
}

// NewStaged constructs a staged emitter in front of next.
func NewStaged(next Emitter) *Staged {
	if next == nil {
		next = NoopEmitter{}
	}
	return &Staged{next: next}
}

// Emit implements the Emitter interface.
func (s *Staged) Emit(evt Event) {
	if s == nil || evt == nil {
		return
	}
	s.mu.Lock()
	s.staged = append(s.staged, evt)
	s.mu.Unlock()
}

// Commit forwards every staged event in order.
func (s *Staged) Commit() {
	if s == nil {
		return
	}
	s.mu.Lock()
	staged := s.staged
	s.staged = nil
	s.mu.Unlock()
	for _, evt := range staged {
		s.next.Emit(evt)
	}
}

// Reset drops every staged event.
func (s *Staged) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.staged = nil
	s.mu.Unlock()
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func uintToString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
