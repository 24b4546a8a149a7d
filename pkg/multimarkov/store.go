package multimarkov

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// ModelInfo holds the essential metadata for a persisted model: its unique
// ID, name, and order.
type ModelInfo struct {
	Id    int
	Name  string
	Order int
}

// SetupSchema initializes the tables used for model persistence in the
// provided database. This function should be called once on a new database
// before a Store is created. It is idempotent and safe to call on an
// already-initialized database.
func SetupSchema(db *sql.DB) error {

	const (
		schemaVocab = `
CREATE TABLE IF NOT EXISTS markov_vocabulary (
    symbol_id INTEGER PRIMARY KEY,
    symbol_text TEXT NOT NULL UNIQUE
);
`
		schemaContexts = `
CREATE TABLE IF NOT EXISTS markov_contexts (
    context_id INTEGER PRIMARY KEY,
    context_text TEXT NOT NULL UNIQUE
);
`
		schemaModels = `
CREATE TABLE IF NOT EXISTS markov_models (
    model_id INTEGER PRIMARY KEY,
    model_name TEXT NOT NULL UNIQUE,
    model_order INTEGER NOT NULL
);
`
		schemaTransitions = `
CREATE TABLE IF NOT EXISTS markov_transitions (
    model_id INTEGER NOT NULL,
    context_id INTEGER NOT NULL,
    next_symbol_id INTEGER NOT NULL,
    weight REAL NOT NULL DEFAULT 1,
    PRIMARY KEY (model_id, context_id, next_symbol_id)
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	// If the transaction succeeds, tx.Commit() runs first and the rollback
	// does nothing. If it fails, this cleans up.
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, schema := range []string{schemaVocab, schemaContexts, schemaModels, schemaTransitions} {
		if _, err = tx.Exec(schema); err != nil {
			return fmt.Errorf("could not create schema: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store persists trained models to a SQL database. Symbol text is produced by
// the configured codec, so one Store instance handles one symbol type; models
// in the same database share a global vocabulary and context table.
type Store[T comparable] struct {
	db                     *sql.DB
	codec                  SymbolCodec[T]
	stmtGetModelInfo       *sql.Stmt
	stmtGetModels          *sql.Stmt
	stmtAddModel           *sql.Stmt
	stmtInsertVocab        *sql.Stmt
	stmtGetOrInsertContext *sql.Stmt
	stmtModelStats         *sql.Stmt
	stmtGetVocabLen        *sql.Stmt
	stmtGetContextLen      *sql.Stmt
	logger                 *slog.Logger
}

// NewStore creates a Store over an initialized database (see SetupSchema).
// It pre-compiles all necessary SQL statements, returning an error if any
// preparation fails.
func NewStore[T comparable](db *sql.DB, codec SymbolCodec[T]) (*Store[T], error) {
	stmtGetModelInfo, err := db.Prepare(`SELECT model_id, model_order FROM markov_models WHERE model_name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetModels, err := db.Prepare(`SELECT model_id, model_name, model_order FROM markov_models;`)
	if err != nil {
		return nil, err
	}

	stmtAddModel, err := db.Prepare(`INSERT INTO markov_models (model_name, model_order) VALUES (?, ?) RETURNING model_id;`)
	if err != nil {
		return nil, err
	}

	stmtInsertVocab, err := db.Prepare(`INSERT INTO markov_vocabulary (symbol_text) VALUES (?) ON CONFLICT(symbol_text) DO UPDATE SET symbol_text=excluded.symbol_text RETURNING symbol_id;`)
	if err != nil {
		return nil, err
	}

	stmtGetOrInsertContext, err := db.Prepare(`INSERT INTO markov_contexts (context_text) VALUES (?) ON CONFLICT(context_text) DO UPDATE SET context_text=excluded.context_text RETURNING context_id;`)
	if err != nil {
		return nil, err
	}

	stmtModelStats, err := db.Prepare(`SELECT COUNT(*), COUNT(DISTINCT context_id), coalesce(SUM(weight), 0) FROM markov_transitions WHERE model_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtGetVocabLen, err := db.Prepare(`SELECT COUNT(*) FROM markov_vocabulary;`)
	if err != nil {
		return nil, err
	}

	stmtGetContextLen, err := db.Prepare(`SELECT COUNT(*) FROM markov_contexts;`)
	if err != nil {
		return nil, err
	}

	return &Store[T]{
		db:                     db,
		codec:                  codec,
		stmtGetModelInfo:       stmtGetModelInfo,
		stmtGetModels:          stmtGetModels,
		stmtAddModel:           stmtAddModel,
		stmtInsertVocab:        stmtInsertVocab,
		stmtGetOrInsertContext: stmtGetOrInsertContext,
		stmtModelStats:         stmtModelStats,
		stmtGetVocabLen:        stmtGetVocabLen,
		stmtGetContextLen:      stmtGetContextLen,
		logger:                 slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store.
func (s *Store[T]) Close() {
	_ = s.stmtGetModelInfo.Close()
	_ = s.stmtGetModels.Close()
	_ = s.stmtAddModel.Close()
	_ = s.stmtInsertVocab.Close()
	_ = s.stmtGetOrInsertContext.Close()
	_ = s.stmtModelStats.Close()
	_ = s.stmtGetVocabLen.Close()
	_ = s.stmtGetContextLen.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store[T]) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Models retrieves metadata for all models currently in the database,
// returning them in a map keyed by model name.
func (s *Store[T]) Models(ctx context.Context) (map[string]ModelInfo, error) {
	rows, err := s.stmtGetModels.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	models := make(map[string]ModelInfo)
	for rows.Next() {
		var info ModelInfo
		if err = rows.Scan(&info.Id, &info.Name, &info.Order); err != nil {
			return nil, err
		}
		models[info.Name] = info
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// Save persists a model under the given name, merging into any existing model
// of the same name: weights for transitions present on both sides are added
// together. Saving onto an existing model of a different order is an error.
// The entire operation is performed within a single transaction.
func (s *Store[T]) Save(ctx context.Context, name string, m *Model[T]) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction for save: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	var modelID, modelOrder int
	err = tx.StmtContext(ctx, s.stmtGetModelInfo).QueryRowContext(ctx, name).Scan(&modelID, &modelOrder)
	if errors.Is(err, sql.ErrNoRows) {
		if err = tx.StmtContext(ctx, s.stmtAddModel).QueryRowContext(ctx, name, m.order).Scan(&modelID); err != nil {
			return fmt.Errorf("failed to insert model '%s': %w", name, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to query for model '%s': %w", name, err)
	} else if modelOrder != m.order {
		return fmt.Errorf("model '%s' exists with order %d, cannot merge a model of order %d", name, modelOrder, m.order)
	}

	stmtInsertVocab := tx.StmtContext(ctx, s.stmtInsertVocab)
	stmtGetOrInsertContext := tx.StmtContext(ctx, s.stmtGetOrInsertContext)

	stmtUpsertTransition, err := tx.PrepareContext(ctx, `
		INSERT INTO markov_transitions (model_id, context_id, next_symbol_id, weight) VALUES (?, ?, ?, ?)
		ON CONFLICT(model_id, context_id, next_symbol_id) DO UPDATE SET weight = weight + excluded.weight;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare transition upsert statement: %w", err)
	}
	defer func(stmt *sql.Stmt) {
		_ = stmt.Close()
	}(stmtUpsertTransition)

	// Map the model's in-memory symbol ids onto database ids.
	dbSymbolIDs := make(map[int]int, len(m.symbols))
	for memID, symbol := range m.symbols {
		var dbID int
		text := s.codec.Encode(symbol)
		if err = stmtInsertVocab.QueryRowContext(ctx, text).Scan(&dbID); err != nil {
			return fmt.Errorf("failed to get/insert symbol '%s': %w", text, err)
		}
		dbSymbolIDs[memID] = dbID
	}

	contextCache := make(map[string]int)
	var keyBuf []byte
	var transitionCount int
	for key, dist := range m.freqs {
		keyBuf = keyBuf[:0]
		for i, part := range strings.Split(key, " ") {
			memID, convErr := strconv.Atoi(part)
			if convErr != nil {
				return fmt.Errorf("malformed context key %q: %w", key, convErr)
			}
			if i > 0 {
				keyBuf = append(keyBuf, ' ')
			}
			keyBuf = strconv.AppendInt(keyBuf, int64(dbSymbolIDs[memID]), 10)
		}
		dbKey := string(keyBuf)

		contextID, ok := contextCache[dbKey]
		if !ok {
			if err = stmtGetOrInsertContext.QueryRowContext(ctx, dbKey).Scan(&contextID); err != nil {
				return fmt.Errorf("failed to get/insert context '%s': %w", dbKey, err)
			}
			contextCache[dbKey] = contextID
		}

		for symbol, weight := range dist {
			if _, err = stmtUpsertTransition.ExecContext(ctx, modelID, contextID, dbSymbolIDs[m.vocab[symbol]], weight); err != nil {
				return fmt.Errorf("failed to upsert transition for context '%s': %w", dbKey, err)
			}
			transitionCount++
		}
	}

	s.logger.InfoContext(ctx, "Model saved",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("symbols_saved", len(dbSymbolIDs)),
		slog.Int("contexts_saved", len(contextCache)),
		slog.Int("transitions_saved", transitionCount),
	)

	return tx.Commit()
}

// Load rebuilds a Model from the database. It returns sql.ErrNoRows (wrapped)
// if no model with the given name exists.
func (s *Store[T]) Load(ctx context.Context, name string) (*Model[T], error) {
	var modelID, modelOrder int
	if err := s.stmtGetModelInfo.QueryRowContext(ctx, name).Scan(&modelID, &modelOrder); err != nil {
		return nil, fmt.Errorf("could not load model '%s': %w", name, err)
	}

	// Symbol text is decoded lazily so entries written by another codec do
	// not break loading, as long as this model never references them.
	texts := make(map[int]string)
	rows, err := s.db.QueryContext(ctx, `SELECT symbol_id, symbol_text FROM markov_vocabulary`)
	if err != nil {
		return nil, fmt.Errorf("could not query vocabulary: %w", err)
	}
	for rows.Next() {
		var id int
		var text string
		if err = rows.Scan(&id, &text); err != nil {
			_ = rows.Close()
			return nil, err
		}
		texts[id] = text
	}
	_ = rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	decoded := make(map[int]T)
	symbolFor := func(id int) (T, error) {
		if symbol, ok := decoded[id]; ok {
			return symbol, nil
		}
		var zero T
		text, ok := texts[id]
		if !ok {
			return zero, fmt.Errorf("consistency error: symbol id %d not found in vocabulary", id)
		}
		symbol, err := s.codec.Decode(text)
		if err != nil {
			return zero, fmt.Errorf("failed to decode symbol %q: %w", text, err)
		}
		decoded[id] = symbol
		return symbol, nil
	}

	m := New[T](WithOrder(modelOrder))

	tRows, err := s.db.QueryContext(ctx, `
		SELECT c.context_text, t.next_symbol_id, t.weight
		FROM markov_transitions t
		JOIN markov_contexts c ON c.context_id = t.context_id
		WHERE t.model_id = ?`, modelID)
	if err != nil {
		return nil, fmt.Errorf("could not query transitions: %w", err)
	}
	defer func(tRows *sql.Rows) {
		_ = tRows.Close()
	}(tRows)

	var keyBuf []byte
	windowCache := make(map[string][]T)
	var transitionCount int
	for tRows.Next() {
		var contextText string
		var nextID int
		var weight float64
		if err = tRows.Scan(&contextText, &nextID, &weight); err != nil {
			return nil, err
		}

		window, ok := windowCache[contextText]
		if !ok {
			parts := strings.Split(contextText, " ")
			window = make([]T, len(parts))
			for i, part := range parts {
				id, convErr := strconv.Atoi(part)
				if convErr != nil {
					return nil, fmt.Errorf("malformed context %q: %w", contextText, convErr)
				}
				if window[i], err = symbolFor(id); err != nil {
					return nil, err
				}
				m.known[window[i]] = struct{}{}
				m.intern(window[i])
			}
			windowCache[contextText] = window
		}

		next, err := symbolFor(nextID)
		if err != nil {
			return nil, err
		}
		m.known[next] = struct{}{}
		m.intern(next)

		var key string
		key, keyBuf = m.internKey(window, keyBuf)
		dist, ok := m.freqs[key]
		if !ok {
			dist = make(Distribution[T])
			m.freqs[key] = dist
		}
		dist[next] += weight
		transitionCount++
	}
	if err = tRows.Err(); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Model loaded",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
		slog.Int("model_order", modelOrder),
		slog.Int("transitions_loaded", transitionCount),
	)

	return m, nil
}

// Delete removes a model and all of its associated transition data from the
// database. The operation is performed within a transaction. Deleting a
// model that does not exist is not an error.
func (s *Store[T]) Delete(ctx context.Context, name string) error {
	var modelID, modelOrder int
	err := s.stmtGetModelInfo.QueryRowContext(ctx, name).Scan(&modelID, &modelOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_transitions WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove transitions for model %d: %w", modelID, err)
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM markov_models WHERE model_id = ?", modelID); err != nil {
		return fmt.Errorf("failed to remove model %d: %w", modelID, err)
	}

	s.logger.InfoContext(ctx, "Model removed",
		slog.String("model_name", name),
		slog.Int("model_id", modelID),
	)

	return tx.Commit()
}
