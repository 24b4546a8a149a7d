package multimarkov

import (
	"bufio"
	"io"
	"regexp"
)

// SequenceScanner splits an input stream into symbol sequences for training.
// It uses regular expressions to split text into word and punctuation tokens,
// and treats sentence-ending punctuation as a sequence terminator. Terminator
// tokens delimit sequences and are not included in them.
type SequenceScanner struct {
	scanner    *bufio.Scanner
	buffer     []string
	current    []string
	done       bool
	splitRegex *regexp.Regexp
	termRegex  *regexp.Regexp
}

// ScannerOption Is a function that configures a SequenceScanner.
type ScannerOption func(*SequenceScanner)

// WithSplitRegex sets the regex string to use when splitting input text.
// Default: `[\w']+|[.,!?;]`
func WithSplitRegex(expr string) ScannerOption {
	return func(s *SequenceScanner) {
		s.splitRegex = regexp.MustCompile(expr)
	}
}

// WithTerminatorRegex sets the regex string deciding whether a token ends the
// current sequence. Default: `^[.!?]$`
func WithTerminatorRegex(expr string) ScannerOption {
	return func(s *SequenceScanner) {
		s.termRegex = regexp.MustCompile(expr)
	}
}

// NewSequenceScanner creates a scanner with default settings, which can be
// overridden by providing one or more ScannerOption functions.
func NewSequenceScanner(r io.Reader, opts ...ScannerOption) *SequenceScanner {
	s := &SequenceScanner{
		scanner: bufio.NewScanner(r),
		// Sequences of word characters OR single instances of common punctuation.
		splitRegex: regexp.MustCompile(`[\w']+|[.,!?;]`),
		// Sentence-ending punctuation marks.
		termRegex: regexp.MustCompile(`^[.!?]$`),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next sequence from the stream. It returns io.EOF as the
// error when the stream is fully consumed. Empty sequences (consecutive
// terminators) are skipped.
func (s *SequenceScanner) Next() ([]string, error) {
	for {
		for len(s.buffer) == 0 {
			if s.done || !s.scanner.Scan() {
				if err := s.scanner.Err(); err != nil {
					return nil, err
				}
				s.done = true
				// Flush a trailing unterminated sequence.
				if len(s.current) > 0 {
					sequence := s.current
					s.current = nil
					return sequence, nil
				}
				return nil, io.EOF
			}
			s.buffer = s.splitRegex.FindAllString(s.scanner.Text(), -1)
		}

		token := s.buffer[0]
		s.buffer = s.buffer[1:]

		if s.termRegex.MatchString(token) {
			if len(s.current) > 0 {
				sequence := s.current
				s.current = nil
				return sequence, nil
			}
			continue
		}
		s.current = append(s.current, token)
	}
}

// ReadSequences drains a reader into a batch of sequences, ready for
// Model.AddSequences.
func ReadSequences(r io.Reader, opts ...ScannerOption) ([][]string, error) {
	scanner := NewSequenceScanner(r, opts...)
	var sequences [][]string
	for {
		sequence, err := scanner.Next()
		if err != nil {
			if err == io.EOF {
				return sequences, nil
			}
			return nil, err
		}
		sequences = append(sequences, sequence)
	}
}

// RuneSequences reads a stream line by line, turning each non-empty line into
// a sequence of runes. Useful for character-level models such as name
// generators.
func RuneSequences(r io.Reader) ([][]rune, error) {
	scanner := bufio.NewScanner(r)
	var sequences [][]rune
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sequences = append(sequences, []rune(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return sequences, nil
}
