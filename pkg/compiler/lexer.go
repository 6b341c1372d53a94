package compiler

import (
	"io"
	"strings"
)

// Scanner holds all mutable state for a single scanning pass over src.
// It hands out words one at a time and cannot be restarted.
type Scanner struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
	col  int // 1-based column of the next rune
	err  error
}

// NewScanner returns a Scanner positioned at the start of src.
func NewScanner(src string) *Scanner {
	return &Scanner{src: []rune(src), line: 1, col: 1}
}

// peek returns the rune at the current position without advancing.
// ok is false at end of input.
func (s *Scanner) peek() (r rune, ok bool) {
	if s.pos >= len(s.src) {
		return 0, false
	}
	return s.src[s.pos], true
}

// advance consumes one rune and returns it.
func (s *Scanner) advance() rune {
	r := s.src[s.pos]
	s.pos++
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
	return r
}

func (s *Scanner) here() Pos { return Pos{Line: s.line, Col: s.col} }

func isBlank(r rune) bool { return r == ' ' || r == '\t' || r == '\r' }

// atBoundary reports whether the next rune ends a word: whitespace, newline
// or end of input.
func (s *Scanner) atBoundary() bool {
	r, ok := s.peek()
	return !ok || isBlank(r) || r == '\n'
}

// skipComment discards everything up to, but not including, the next newline.
// The opening '#' must already have been consumed.
func (s *Scanner) skipComment() {
	for {
		r, ok := s.peek()
		if !ok || r == '\n' {
			return
		}
		s.advance()
	}
}

// scanWord collects one word of the given class. The leading letter must
// still be at s.peek(). The word ends after its class's last letter when
// that letter is followed by a boundary; the boundary is left unconsumed.
func (s *Scanner) scanWord(class WordClass) (Word, error) {
	letters := class.Letters()
	last := rune(letters[len(letters)-1])
	w := Word{Class: class, Counts: make([]uint32, len(letters)), Pos: s.here()}

	for {
		r, ok := s.peek()
		if !ok {
			return Word{}, errorf(KindLexical, s.here(), "unterminated %s word", class)
		}
		i := strings.IndexRune(letters, r)
		if i < 0 {
			return Word{}, errorf(KindLexical, s.here(), "unexpected character %q in %s word", r, class)
		}
		s.advance()
		w.Counts[i]++
		if r == last && s.atBoundary() {
			break
		}
	}

	for i, n := range w.Counts {
		if n == 0 {
			return Word{}, errorf(KindLexical, w.Pos, "%s word is missing letter %q", class, letters[i])
		}
	}
	return w, nil
}

// Next returns the next word, or io.EOF once the input is exhausted. After
// the first error every call returns that same error.
func (s *Scanner) Next() (Word, error) {
	if s.err != nil {
		return Word{}, s.err
	}
	w, err := s.next()
	if err != nil {
		s.err = err
	}
	return w, err
}

func (s *Scanner) next() (Word, error) {
	for {
		r, ok := s.peek()
		if !ok {
			return Word{}, io.EOF
		}
		switch {
		case isBlank(r), r == '\n':
			s.advance()
		case r == '#':
			s.advance()
			s.skipComment()
		case r == 's':
			return s.scanWord(Stack)
		case r == 'b':
			return s.scanWord(Bad)
		default:
			return Word{}, errorf(KindLexical, s.here(), "unexpected character %q", r)
		}
	}
}

// Lex scans src and returns all of its words.
// It returns a non-nil error on the first illegal character or malformed word.
func Lex(src string) ([]Word, error) {
	s := NewScanner(src)
	var words []Word
	for {
		w, err := s.Next()
		if err == io.EOF {
			return words, nil
		}
		if err != nil {
			return words, err
		}
		words = append(words, w)
	}
}
