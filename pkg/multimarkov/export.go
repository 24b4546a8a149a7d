package multimarkov

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// ExportedModel is the serializable representation of a trained model,
// used for JSON-based import and export.
type ExportedModel struct {
	Name        string               `json:"name"`
	Order       int                  `json:"order"`
	Vocabulary  map[string]int       `json:"vocabulary"` // symbol_text -> symbol_id
	Contexts    map[string]int       `json:"contexts"`   // context_text -> context_id
	Transitions []ExportedTransition `json:"transitions"`
}

// ExportedTransition is the serializable representation of a single
// context->symbol link, used within an ExportedModel.
type ExportedTransition struct {
	ContextID    int     `json:"context_id"`
	NextSymbolID int     `json:"next_symbol_id"`
	Weight       float64 `json:"weight"`
}

// Export serializes the model into a JSON format and writes it to the
// provided io.Writer. Context text is the space-joined symbol ids of the
// window, matching the model's internal key encoding. The codec must encode
// distinct symbols to distinct text.
func (m *Model[T]) Export(w io.Writer, name string, codec SymbolCodec[T]) error {
	vocabulary := make(map[string]int, len(m.symbols))
	for id, symbol := range m.symbols {
		vocabulary[codec.Encode(symbol)] = id
	}

	contexts := make(map[string]int, len(m.freqs))
	transitions := make([]ExportedTransition, 0)
	for key, dist := range m.freqs {
		contextID, ok := contexts[key]
		if !ok {
			contextID = len(contexts)
			contexts[key] = contextID
		}
		for symbol, weight := range dist {
			transitions = append(transitions, ExportedTransition{
				ContextID:    contextID,
				NextSymbolID: m.vocab[symbol],
				Weight:       weight,
			})
		}
	}

	exported := ExportedModel{
		Name:        name,
		Order:       m.order,
		Vocabulary:  vocabulary,
		Contexts:    contexts,
		Transitions: transitions,
	}

	m.logger.Info("Model exported",
		slog.String("model_name", name),
		slog.Int("vocab_items_exported", len(vocabulary)),
		slog.Int("contexts_exported", len(contexts)),
		slog.Int("transitions_exported", len(transitions)),
	)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exported)
}

// Import reads a JSON representation of a model from an io.Reader and merges
// its data into the model: weights for transitions present on both sides are
// added together. The imported model's order must match the receiver's.
func (m *Model[T]) Import(r io.Reader, codec SymbolCodec[T]) error {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return fmt.Errorf("failed to decode json model: %w", err)
	}
	return m.merge(&imported, codec)
}

// ImportModel reads a JSON representation of a model from an io.Reader and
// builds a fresh Model from it, using the exported order.
func ImportModel[T comparable](r io.Reader, codec SymbolCodec[T]) (*Model[T], error) {
	var imported ExportedModel
	if err := json.NewDecoder(r).Decode(&imported); err != nil {
		return nil, fmt.Errorf("failed to decode json model: %w", err)
	}
	m := New[T](WithOrder(imported.Order))
	if err := m.merge(&imported, codec); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model[T]) merge(imported *ExportedModel, codec SymbolCodec[T]) error {
	if imported.Order != m.order {
		return fmt.Errorf("cannot merge model of order %d into model of order %d", imported.Order, m.order)
	}

	idToSymbol := make(map[int]T, len(imported.Vocabulary))
	for text, id := range imported.Vocabulary {
		symbol, err := codec.Decode(text)
		if err != nil {
			return fmt.Errorf("failed to decode symbol %q: %w", text, err)
		}
		idToSymbol[id] = symbol
		m.known[symbol] = struct{}{}
		m.intern(symbol)
	}

	// Context windows are re-keyed with the receiving model's symbol ids.
	idToWindow := make(map[int][]T, len(imported.Contexts))
	for text, contextID := range imported.Contexts {
		parts := strings.Split(text, " ")
		window := make([]T, len(parts))
		for i, part := range parts {
			oldID, err := strconv.Atoi(part)
			if err != nil {
				return fmt.Errorf("malformed context %q: %w", text, err)
			}
			symbol, ok := idToSymbol[oldID]
			if !ok {
				return fmt.Errorf("consistency error: symbol id %d in context %q not found in vocabulary", oldID, text)
			}
			window[i] = symbol
		}
		idToWindow[contextID] = window
	}

	var keyBuf []byte
	for _, transition := range imported.Transitions {
		window, ok := idToWindow[transition.ContextID]
		if !ok {
			return fmt.Errorf("consistency error: context id %d not found in context map", transition.ContextID)
		}
		next, ok := idToSymbol[transition.NextSymbolID]
		if !ok {
			return fmt.Errorf("consistency error: symbol id %d not found in vocabulary", transition.NextSymbolID)
		}
		var key string
		key, keyBuf = m.internKey(window, keyBuf)
		dist, ok := m.freqs[key]
		if !ok {
			dist = make(Distribution[T])
			m.freqs[key] = dist
		}
		dist[next] += transition.Weight
	}

	m.logger.Info("Model imported",
		slog.String("model_name", imported.Name),
		slog.Int("vocab_items_merged", len(imported.Vocabulary)),
		slog.Int("contexts_merged", len(imported.Contexts)),
		slog.Int("transitions_merged", len(imported.Transitions)),
	)
	return nil
}
