package multimarkov

import (
	"log/slog"
	"math"
	"sort"
)

// generateOptions Is used by Generate to configure default options.
type generateOptions struct {
	maxLength   int
	temperature float64
	topK        int
}

// GenerateOption is a function that configures generation parameters. It's
// used as a variadic argument to Generate.
type GenerateOption func(*generateOptions)

// WithMaxLength sets the maximum number of symbols to generate beyond the
// seed. Generation may stop earlier if it reaches a context with no model.
func WithMaxLength(n int) GenerateOption {
	return func(o *generateOptions) { o.maxLength = n }
}

// WithTemperature adjusts the randomness of symbol selection.
// A value of 1.0 is standard weighted random selection.
// Values > 1.0 increase randomness (making low-weight symbols more likely).
// Values < 1.0 decrease randomness (making high-weight symbols even more likely).
// A value of 0 or less results in deterministic selection (always choosing
// the highest-weight symbol).
func WithTemperature(t float64) GenerateOption {
	return func(o *generateOptions) { o.temperature = t }
}

// WithTopK restricts the selection pool to the `k` highest-weight symbols at
// each step. A value of 0 disables Top-K sampling.
func WithTopK(k int) GenerateOption {
	return func(o *generateOptions) { o.topK = k }
}

// Generate extends the seed sequence by repeatedly sampling a next symbol
// from the backoff distribution of everything generated so far. It stops
// after the configured maximum length or at a dead end (a tail with no
// matching context at any length, which for a seeded model only happens
// before smoothing or on an unseen seed). The seed is returned as the prefix
// of the result and is not modified.
func (m *Model[T]) Generate(seed []T, src Source, opts ...GenerateOption) ([]T, error) {
	options := &generateOptions{
		maxLength:   100,
		temperature: 1.0,
		topK:        0,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.maxLength < 0 {
		options.maxLength = 0
	}

	out := make([]T, len(seed), len(seed)+options.maxLength)
	copy(out, seed)

	for n := 0; n < options.maxLength; n++ {
		dist, ok := m.BestModel(out)
		if !ok {
			m.logger.Debug("Generation terminated due to dead-end",
				slog.Int("generated_length", n),
			)
			break
		}
		next, err := chooseNext(dist, src, options)
		if err != nil {
			return out, err
		}
		out = append(out, next)
	}
	return out, nil
}

// weightedSymbol pairs a symbol with its weight for sorting and selection.
type weightedSymbol[T comparable] struct {
	symbol T
	weight float64
}

// chooseNext abstracts the symbol selection logic from the generation loop.
func chooseNext[T comparable](dist Distribution[T], src Source, options *generateOptions) (T, error) {
	var zero T
	if len(dist) == 0 {
		return zero, ErrCorruptDistribution
	}
	choices := make([]weightedSymbol[T], 0, len(dist))
	for s, w := range dist {
		choices = append(choices, weightedSymbol[T]{symbol: s, weight: w})
	}

	// topK filtering
	if options.topK > 0 && options.topK < len(choices) {
		sort.Slice(choices, func(i, j int) bool {
			return choices[i].weight > choices[j].weight
		})
		choices = choices[:options.topK]
	}

	if options.temperature <= 0 { // Deterministic
		best := choices[0]
		for _, choice := range choices[1:] {
			if choice.weight > best.weight {
				best = choice
			}
		}
		return best.symbol, nil
	}

	if options.temperature == 1.0 { // Standard weighted random
		var total float64
		for _, choice := range choices {
			total += choice.weight
		}
		roll := src.Float64() * total
		for _, choice := range choices {
			if roll > choice.weight {
				roll -= choice.weight
			} else {
				return choice.symbol, nil
			}
		}
	} else { // Temperature-based sampling
		logWeights := make([]float64, len(choices))
		maxLog := math.Inf(-1)
		for i, choice := range choices {
			lw := math.Log(choice.weight) / options.temperature
			logWeights[i] = lw
			if lw > maxLog {
				maxLog = lw
			}
		}
		var total float64
		weights := make([]float64, len(choices))
		for i, lw := range logWeights {
			w := math.Exp(lw - maxLog)
			weights[i] = w
			total += w
		}
		roll := src.Float64() * total
		for i, choice := range choices {
			if roll > weights[i] {
				roll -= weights[i]
			} else {
				return choice.symbol, nil
			}
		}
	}

	return zero, ErrCorruptDistribution
}
