package multimarkov

import "context"

// ModelStats holds aggregated statistics for a single model.
type ModelStats struct {
	Vocabulary  int     // The number of distinct symbols ever observed.
	Contexts    int     // The number of distinct context keys in the frequency table.
	Transitions int     // The number of unique context->symbol entries.
	TotalWeight float64 // The sum of all transition weights, including priors.
}

// Stats returns a snapshot of aggregate statistics for the model.
func (m *Model[T]) Stats() ModelStats {
	stats := ModelStats{
		Vocabulary: len(m.known),
		Contexts:   len(m.freqs),
	}
	for _, dist := range m.freqs {
		stats.Transitions += len(dist)
		stats.TotalWeight += dist.Total()
	}
	return stats
}

// StoredModelStats holds aggregated statistics for a single persisted model.
type StoredModelStats struct {
	Contexts    int     // The number of distinct contexts with at least one transition.
	Transitions int     // The number of unique context->symbol entries.
	TotalWeight float64 // The sum of all transition weights, including priors.
}

// StoreStats holds aggregated statistics for the entire database, including a
// list of all models and their individual stats.
type StoreStats struct {
	Models      map[string]ModelInfo     // All models in the database, keyed by name.
	Stats       map[int]StoredModelStats // A mapping of model ids to their stats.
	VocabSize   int                      // The number of unique symbols across all models.
	ContextSize int                      // The number of unique contexts across all models.
}

// Stats returns a snapshot of statistics for the entire database, computed
// with aggregate queries so no model is loaded into memory.
func (s *Store[T]) Stats(ctx context.Context) (*StoreStats, error) {
	modelInfos, err := s.Models(ctx)
	if err != nil {
		return nil, err
	}

	var vocabLen int
	if err = s.stmtGetVocabLen.QueryRowContext(ctx).Scan(&vocabLen); err != nil {
		return nil, err
	}

	var contextLen int
	if err = s.stmtGetContextLen.QueryRowContext(ctx).Scan(&contextLen); err != nil {
		return nil, err
	}

	modelStats := make(map[int]StoredModelStats)
	for _, v := range modelInfos {
		var st StoredModelStats
		err = s.stmtModelStats.QueryRowContext(ctx, v.Id).Scan(&st.Transitions, &st.Contexts, &st.TotalWeight)
		if err != nil {
			return nil, err
		}
		modelStats[v.Id] = st
	}

	return &StoreStats{
		Models:      modelInfos,
		Stats:       modelStats,
		VocabSize:   vocabLen,
		ContextSize: contextLen,
	}, nil
}
