package multimarkov

import (
	"math/rand/v2"
	"testing"
)

func TestGenerateDeterministic(t *testing.T) {
	m := New[string]()
	err := m.AddSequences([][]string{
		{"a", "b", "c", "d"},
		{"a", "b", "c", "d"},
		{"a", "b", "x"},
	})
	if err != nil {
		t.Fatal(err)
	}

	// With temperature 0 the highest-weight symbol always wins, so the chain
	// follows the doubly-observed sequence and stops at its dead end: nothing
	// was ever observed following "d".
	out, err := m.Generate([]string{"a"}, fixedSource(0), WithMaxLength(10), WithTemperature(0))
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	want := []string{"a", "b", "c", "d"}
	if len(out) != len(want) {
		t.Fatalf("Generate() = %v, want %v", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Generate() = %v, want %v", out, want)
		}
	}
}

func TestGenerateMaxLength(t *testing.T) {
	m := New[string]()
	if err := m.AddSequence([]string{"a", "b", "c", "d", "e"}); err != nil {
		t.Fatal(err)
	}
	out, err := m.Generate([]string{"a"}, fixedSource(0), WithMaxLength(2), WithTemperature(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 { // seed + 2 generated
		t.Errorf("generated %d symbols beyond the seed, want 2: %v", len(out)-1, out)
	}
}

func TestGenerateDeadEndOnUnseenSeed(t *testing.T) {
	m := New[string]()
	if err := m.AddSequence([]string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	out, err := m.Generate([]string{"z"}, fixedSource(0), WithMaxLength(5))
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Errorf("expected generation to stop immediately at a dead end, got %v", out)
	}
}

func TestGenerateTopK(t *testing.T) {
	m := New[rune]()
	err := m.AddSequences([][]rune{
		[]rune("ab"), []rune("ab"), []rune("ab"),
		[]rune("ac"),
	})
	if err != nil {
		t.Fatal(err)
	}

	// Top-1 restricts the pool to 'b' regardless of the roll.
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		out, err := m.Generate([]rune("a"), rng, WithMaxLength(1), WithTopK(1))
		if err != nil {
			t.Fatal(err)
		}
		if len(out) != 2 || out[1] != 'b' {
			t.Fatalf("top-1 generation drew %v, want 'b'", out)
		}
	}
}

func TestGenerateTemperatureSampling(t *testing.T) {
	m := New[rune]()
	err := m.AddSequences([][]rune{
		[]rune("ab"), []rune("ab"), []rune("ab"),
		[]rune("ac"),
	})
	if err != nil {
		t.Fatal(err)
	}

	// A very low (but nonzero) temperature sharpens the distribution; the
	// dominant continuation should win nearly always.
	rng := rand.New(rand.NewPCG(3, 4))
	counts := make(map[rune]int)
	for i := 0; i < 500; i++ {
		out, err := m.Generate([]rune("a"), rng, WithMaxLength(1), WithTemperature(0.1))
		if err != nil {
			t.Fatal(err)
		}
		counts[out[1]]++
	}
	if counts['b'] < 490 {
		t.Errorf("low temperature drew 'b' only %d/500 times", counts['b'])
	}
}

func BenchmarkGenerate(b *testing.B) {
	sequences := createBenchmarkSequences()
	m := New[string](WithOrder(2))
	if err := m.AddSequences(sequences); err != nil {
		b.Fatalf("AddSequences() setup for benchmark failed: %v", err)
	}
	seed := sequences[0][:1]

	genOpts := map[string][]GenerateOption{
		"Simple":          {WithMaxLength(50)},
		"WithTemp":        {WithMaxLength(50), WithTemperature(0.7)},
		"WithTopK":        {WithMaxLength(50), WithTopK(10)},
		"WithTempAndTopK": {WithMaxLength(50), WithTemperature(0.7), WithTopK(10)},
	}

	for name, opts := range genOpts {
		b.Run(name, func(b *testing.B) {
			rng := rand.New(rand.NewPCG(7, 13))

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, err := m.Generate(seed, rng, opts...); err != nil {
					b.Fatalf("Generate() failed: %v", err)
				}
			}
		})
	}
}
