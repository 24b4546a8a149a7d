package multimarkov

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAddSequence(t *testing.T) {
	m := New[rune]()
	if err := m.AddSequence([]rune("hello")); err != nil {
		t.Fatalf("AddSequence() failed: %v", err)
	}

	// 'l' follows 'l' and 'o' follows "ll".
	dist, ok := m.Distribution([]rune("l"))
	if !ok {
		t.Fatal("expected a distribution for context ['l']")
	}
	if dist['l'] != 1.0 {
		t.Errorf("weight of 'l' after ['l'] = %v, want 1.0", dist['l'])
	}
	dist, ok = m.Distribution([]rune("ll"))
	if !ok {
		t.Fatal("expected a distribution for context ['l','l']")
	}
	if dist['o'] != 1.0 {
		t.Errorf("weight of 'o' after ['l','l'] = %v, want 1.0", dist['o'])
	}

	// Every symbol in the sequence is a known state, including the first,
	// which is never itself a "next" target.
	known := make(map[rune]bool)
	for _, s := range m.KnownStates() {
		known[s] = true
	}
	for _, s := range "helo" {
		if !known[s] {
			t.Errorf("expected %q to be a known state", s)
		}
	}
	if len(known) != 4 {
		t.Errorf("expected 4 known states, got %d", len(known))
	}
}

func TestAddSequenceTooShort(t *testing.T) {
	for _, tc := range [][]rune{nil, []rune("x")} {
		m := New[rune]()
		err := m.AddSequence(tc)
		if !errors.Is(err, ErrSequenceTooShort) {
			t.Errorf("AddSequence(%q) error = %v, want ErrSequenceTooShort", string(tc), err)
		}
		if stats := m.Stats(); stats.Vocabulary != 0 || stats.Contexts != 0 {
			t.Errorf("model mutated by rejected sequence: %+v", stats)
		}
	}
}

func TestAddSequencesSkipsShort(t *testing.T) {
	m := New[rune]()
	err := m.AddSequences([][]rune{
		[]rune("a"), // too short, skipped without aborting the batch
		[]rune("foobar"),
		[]rune("baz"),
	})
	if err != nil {
		t.Fatalf("AddSequences() failed: %v", err)
	}

	// Both surviving sequences contain 'b' -> 'a' once.
	dist, ok := m.Distribution([]rune("b"))
	if !ok {
		t.Fatal("expected a distribution for context ['b']")
	}
	if dist['a'] != 2.0 {
		t.Errorf("weight of 'a' after ['b'] = %v, want 2.0", dist['a'])
	}
}

func TestAddSequencesEmptyBatch(t *testing.T) {
	m := New[rune]()
	if err := m.AddSequences(nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("AddSequences(nil) error = %v, want ErrEmptyBatch", err)
	}
}

func TestTrainingIsAdditiveAndOrderIndependent(t *testing.T) {
	sequences := [][]rune{
		[]rune("ace"),
		[]rune("foobar"),
		[]rune("baz"),
	}

	forward := New[rune]()
	for _, seq := range sequences {
		if err := forward.AddSequence(seq); err != nil {
			t.Fatal(err)
		}
	}
	backward := New[rune]()
	for i := len(sequences) - 1; i >= 0; i-- {
		if err := backward.AddSequence(sequences[i]); err != nil {
			t.Fatal(err)
		}
	}

	if forward.Stats() != backward.Stats() {
		t.Errorf("stats differ by training order: %+v vs %+v", forward.Stats(), backward.Stats())
	}

	// Spot-check semantic equality of a few contexts regardless of the
	// internal id assignment order.
	for _, context := range []string{"a", "b", "ba", "oo", "o"} {
		fd, fok := forward.Distribution([]rune(context))
		bd, bok := backward.Distribution([]rune(context))
		if fok != bok {
			t.Fatalf("context %q present = %v forward, %v backward", context, fok, bok)
		}
		if !fok {
			continue
		}
		if len(fd) != len(bd) {
			t.Fatalf("context %q has %d entries forward, %d backward", context, len(fd), len(bd))
		}
		for s, w := range fd {
			if bd[s] != w {
				t.Errorf("context %q symbol %q: weight %v forward, %v backward", context, s, w, bd[s])
			}
		}
	}
}

func TestContextLengthBound(t *testing.T) {
	for _, order := range []int{1, 2, 3, 5} {
		m := New[rune](WithOrder(order))
		if err := m.AddSequence([]rune("abcdefghij")); err != nil {
			t.Fatal(err)
		}
		for key := range m.freqs {
			if length := strings.Count(key, " ") + 1; length > order {
				t.Errorf("order %d: context key %q has length %d", order, key, length)
			}
		}
	}
}

func TestAddPriors(t *testing.T) {
	m := New[rune]()
	if err := m.AddSequence([]rune("abc")); err != nil {
		t.Fatal(err)
	}
	before := m.Stats().Contexts

	if err := m.AddPriors(DefaultPrior); err != nil {
		t.Fatalf("AddPriors() failed: %v", err)
	}

	dist, _ := m.Distribution([]rune("a"))
	if dist['b'] != 1.0 {
		t.Errorf("observed weight of 'b' after ['a'] = %v, want 1.0 (must not be overwritten)", dist['b'])
	}
	dist, _ = m.Distribution([]rune("b"))
	if dist['a'] != DefaultPrior {
		t.Errorf("smoothed weight of 'a' after ['b'] = %v, want %v", dist['a'], DefaultPrior)
	}

	// Smoothing fills gaps in existing contexts, never creates new ones.
	if after := m.Stats().Contexts; after != before {
		t.Errorf("AddPriors created contexts: %d -> %d", before, after)
	}
	// Every context now offers every known symbol.
	if want := m.Stats().Contexts * 3; m.Stats().Transitions != want {
		t.Errorf("transitions = %d, want %d after smoothing", m.Stats().Transitions, want)
	}

	// A second pass with a different prior never overwrites filled entries.
	if err := m.AddPriors(0.5); err != nil {
		t.Fatal(err)
	}
	dist, _ = m.Distribution([]rune("b"))
	if dist['a'] != DefaultPrior {
		t.Errorf("weight of 'a' after ['b'] changed to %v on second AddPriors", dist['a'])
	}
}

func TestAddPriorsNegative(t *testing.T) {
	m := New[rune]()
	if err := m.AddPriors(-0.1); err == nil {
		t.Error("expected an error for a negative prior, got nil")
	}
}

func BenchmarkAddSequence(b *testing.B) {
	sequences := createBenchmarkSequences()

	for _, order := range []int{1, 2, 3, 4, 5} {
		b.Run(fmt.Sprintf("Order%d", order), func(b *testing.B) {
			m := New[string](WithOrder(order))

			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if err := m.AddSequence(sequences[i%len(sequences)]); err != nil {
					b.Fatalf("AddSequence() failed: %v", err)
				}
			}
		})
	}
}
