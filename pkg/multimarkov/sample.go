package multimarkov

import "errors"

// Source is a uniform-[0,1) random source used for weighted sampling.
// *math/rand/v2.Rand satisfies it; tests can supply a fixed source for
// deterministic draws.
type Source interface {
	Float64() float64
}

// ErrCorruptDistribution indicates that a roulette-wheel walk exhausted a
// distribution without selecting a symbol. A correctly trained and smoothed
// distribution always yields a selection, so this is a contract violation
// (for example, a distribution mutated from outside to hold negative weights).
var ErrCorruptDistribution = errors.New("distribution exhausted without a selection")

// BestModel finds the distribution for the most specific context matching the
// tail of the query sequence, backing off to shorter suffixes when longer
// ones are unknown. For a query ['t','r','u','s'] on an order-3 model it
// probes ['r','u','s'], then ['u','s'], then ['s'], returning the first
// distribution found. It reports false when no suffix of any length has been
// observed; absence is not an error, just a genuinely novel context.
//
// The returned map is the model's live state and must be treated as read-only.
func (m *Model[T]) BestModel(query []T) (Distribution[T], bool) {
	longest := m.order
	if len(query) < longest {
		longest = len(query)
	}
	var keyBuf []byte
	for i := longest; i >= 1; i-- {
		var key string
		var ok bool
		key, keyBuf, ok = m.lookupKey(query[len(query)-i:], keyBuf)
		if !ok {
			// An unseen symbol in this window; a shorter suffix may still match.
			continue
		}
		if dist, ok := m.freqs[key]; ok {
			return dist, true
		}
	}
	return nil, false
}

// RandomNext draws one symbol to follow the query sequence, with probability
// proportional to its weight in the backoff distribution found by BestModel.
// It reports false, with the zero value of T, when no matching context exists.
// The draw consumes exactly one value from src.
func (m *Model[T]) RandomNext(query []T, src Source) (T, bool, error) {
	var zero T
	dist, ok := m.BestModel(query)
	if !ok {
		return zero, false, nil
	}

	// Standard roulette-wheel selection: every symbol is chosen with
	// probability weight / Total().
	roll := src.Float64() * dist.Total()
	for s, w := range dist {
		if roll > w {
			roll -= w
		} else {
			return s, true, nil
		}
	}
	return zero, false, ErrCorruptDistribution
}
