package multimarkov

import (
	"database/sql"
	"go/build"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// fixedSource is a Source that always returns the same value, for
// deterministic sampling tests.
type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

// statsEqual compares stats with a tolerance on the weight sum, since float
// summation order over map entries is not stable.
func statsEqual(a, b ModelStats) bool {
	return a.Vocabulary == b.Vocabulary &&
		a.Contexts == b.Contexts &&
		a.Transitions == b.Transitions &&
		math.Abs(a.TotalWeight-b.TotalWeight) < 1e-9
}

// setupTestStore creates a SQLite database and a string-symbol Store for
// testing. It uses t.Cleanup to ensure resources are released.
func setupTestStore(t *testing.T) (*sql.DB, *Store[string]) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	// SetupSchema is documented idempotent.
	if err := SetupSchema(db); err != nil {
		t.Fatalf("second SetupSchema() failed: %v", err)
	}

	s, err := NewStore[string](db, StringCodec{})
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

var (
	benchmarkSequences [][]string
	corpusOnce         sync.Once
)

// createBenchmarkSequences reads Go source files and splits them into word
// sequences for benchmarking.
func createBenchmarkSequences() [][]string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/go/parser/parser.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				sb.Reset()
				sb.WriteString("this is a fallback corpus for benchmarking. it is not very long but will prevent a crash. ")
				break
			}
			sb.Write(content)
			sb.WriteString("\n")
		}

		sequences, err := ReadSequences(strings.NewReader(sb.String()))
		if err != nil {
			panic(err)
		}
		// AddSequence rejects sequences shorter than two symbols.
		for _, seq := range sequences {
			if len(seq) >= 2 {
				benchmarkSequences = append(benchmarkSequences, seq)
			}
		}
	})
	return benchmarkSequences
}

// newTrainedModel builds the reference model used across tests: the three
// sequences share several single-symbol contexts but few longer ones.
func newTrainedModel(t *testing.T) *Model[rune] {
	t.Helper()
	m := New[rune]()
	err := m.AddSequences([][]rune{
		[]rune("ace"),
		[]rune("foobar"),
		[]rune("baz"),
	})
	if err != nil {
		t.Fatalf("AddSequences() failed: %v", err)
	}
	return m
}
