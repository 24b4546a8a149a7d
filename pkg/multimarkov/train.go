package multimarkov

import (
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrSequenceTooShort is returned by AddSequence when a training sequence
	// contains fewer than two symbols and therefore no transitions.
	ErrSequenceTooShort = errors.New("sequence must contain at least two symbols")
	// ErrEmptyBatch is returned by AddSequences when the batch holds no sequences.
	ErrEmptyBatch = errors.New("no sequences in batch")
)

// AddSequence records every observed "context -> next symbol" transition in
// one sequence of training data, for every context length from 1 up to the
// model's order. Training is additive; repeated calls accumulate weights, so
// a model is fully trained by feeding it many sequences in any order.
//
// Sequences with fewer than two symbols contain no transitions and are
// rejected with ErrSequenceTooShort, leaving the model unchanged.
func (m *Model[T]) AddSequence(sequence []T) error {
	if len(sequence) < 2 {
		return fmt.Errorf("%w: got %d", ErrSequenceTooShort, len(sequence))
	}

	var keyBuf []byte
	for i := len(sequence) - 1; i >= 1; i-- {
		m.known[sequence[i]] = struct{}{}
		m.intern(sequence[i])

		// For every window of up to `order` symbols preceding position i,
		// record that sequence[i] was observed following it.
		start := i - m.order
		if start < 0 {
			start = 0
		}
		for j := start; j < i; j++ {
			var key string
			key, keyBuf = m.internKey(sequence[j:i], keyBuf)
			dist, ok := m.freqs[key]
			if !ok {
				dist = make(Distribution[T])
				m.freqs[key] = dist
			}
			dist[sequence[i]] += 1.0
		}
	}
	// The loop above stops before index 0.
	m.known[sequence[0]] = struct{}{}
	m.intern(sequence[0])
	return nil
}

// AddSequences trains the model on a batch of sequences by feeding each one
// to AddSequence in turn. A too-short sequence inside the batch is logged and
// skipped without aborting the batch; the call fails only when the batch
// itself is empty, with ErrEmptyBatch.
func (m *Model[T]) AddSequences(sequences [][]T) error {
	if len(sequences) == 0 {
		return ErrEmptyBatch
	}
	var skipped int
	for i, sequence := range sequences {
		if err := m.AddSequence(sequence); err != nil {
			skipped++
			m.logger.Warn("Skipping training sequence",
				slog.Int("index", i),
				slog.Int("length", len(sequence)),
				slog.Any("error", err),
			)
		}
	}
	m.logger.Info("Batch training completed",
		slog.Int("sequences", len(sequences)),
		slog.Int("skipped", skipped),
	)
	return nil
}

// AddPriors fills in missing transitions so that every context already present
// in the frequency table has an entry for every known symbol, inserting
// `prior` as the weight wherever an entry is absent. Observed weights are
// never overwritten, and no new context keys are created.
//
// This is intended to run once after all training is complete, so that every
// observed context offers a nonzero-probability path to any known symbol and
// generation cannot dead-end on an observed context.
func (m *Model[T]) AddPriors(prior float64) error {
	if prior < 0 {
		return fmt.Errorf("prior must be non-negative, got %v", prior)
	}
	for _, dist := range m.freqs {
		for s := range m.known {
			if _, ok := dist[s]; !ok {
				dist[s] = prior
			}
		}
	}
	return nil
}
