package multimarkov

import (
	"io"
	"log/slog"
	"strconv"
)

const (
	// DefaultOrder is the context length used when no WithOrder option is given.
	DefaultOrder = 3
	// DefaultPrior is a reasonable smoothing weight for AddPriors.
	DefaultPrior = 0.005
)

// Distribution maps a next symbol to its accumulated (possibly smoothed)
// weight. Weights are raw follow-counts plus any priors; they are not
// normalized to sum to 1.
type Distribution[T comparable] map[T]float64

// Total returns the sum of all weights in the distribution.
func (d Distribution[T]) Total() float64 {
	var total float64
	for _, w := range d {
		total += w
	}
	return total
}

// Model is a trainable variable-order Markov model over symbols of type T.
//
// Symbols are interned into an integer vocabulary, and a context window is
// keyed by the space-joined decimal ids of its symbols. Every context key in
// the frequency table has a length between 1 and the model's order.
//
// A Model is not safe for concurrent use. Callers that share one across
// goroutines must hold an exclusive lock around AddSequence, AddSequences and
// AddPriors; read-only queries may share a read lock but must never run
// concurrently with a mutation.
type Model[T comparable] struct {
	freqs   map[string]Distribution[T]
	known   map[T]struct{}
	vocab   map[T]int
	symbols []T // id -> symbol
	order   int
	logger  *slog.Logger
}

type modelOptions struct {
	order int
}

// ModelOption configures a Model at construction time.
type ModelOption func(*modelOptions)

// WithOrder sets the maximum context length. The order is fixed for the
// lifetime of the model; training and querying always use the same order.
// Values below 1 are ignored.
func WithOrder(n int) ModelOption {
	return func(o *modelOptions) {
		if n >= 1 {
			o.order = n
		}
	}
}

// New creates an empty model. The default order is DefaultOrder.
func New[T comparable](opts ...ModelOption) *Model[T] {
	o := &modelOptions{order: DefaultOrder}
	for _, opt := range opts {
		opt(o)
	}
	return &Model[T]{
		freqs:  make(map[string]Distribution[T]),
		known:  make(map[T]struct{}),
		vocab:  make(map[T]int),
		order:  o.order,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the logger for the model. By default, all logs are discarded.
func (m *Model[T]) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Order returns the maximum context length used for training and queries.
func (m *Model[T]) Order() int {
	return m.order
}

// KnownStates returns a copy of the set of all symbols ever observed in
// training data, in no particular order.
func (m *Model[T]) KnownStates() []T {
	states := make([]T, 0, len(m.known))
	for s := range m.known {
		states = append(states, s)
	}
	return states
}

// Distribution returns the distribution recorded for the exact given context,
// without backoff. The returned map is the model's live state; mutating it
// outside the defined operations breaks the model's invariants.
func (m *Model[T]) Distribution(context []T) (Distribution[T], bool) {
	key, _, ok := m.lookupKey(context, nil)
	if !ok {
		return nil, false
	}
	dist, ok := m.freqs[key]
	return dist, ok
}

// intern returns the vocabulary id for a symbol, assigning one if needed.
func (m *Model[T]) intern(s T) int {
	if id, ok := m.vocab[s]; ok {
		return id
	}
	id := len(m.symbols)
	m.vocab[s] = id
	m.symbols = append(m.symbols, s)
	return id
}

// internKey encodes a context window as its space-joined symbol ids, interning
// any symbols not yet in the vocabulary. The byte buffer is reused across
// calls to avoid per-window allocations.
func (m *Model[T]) internKey(window []T, buf []byte) (string, []byte) {
	buf = buf[:0]
	for i, s := range window {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendInt(buf, int64(m.intern(s)), 10)
	}
	return string(buf), buf
}

// lookupKey encodes a context window for a read-only lookup. It reports false
// if any symbol in the window has never been observed, since such a context
// cannot exist in the frequency table.
func (m *Model[T]) lookupKey(window []T, buf []byte) (string, []byte, bool) {
	buf = buf[:0]
	for i, s := range window {
		id, ok := m.vocab[s]
		if !ok {
			return "", buf, false
		}
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendInt(buf, int64(id), 10)
	}
	return string(buf), buf, true
}
