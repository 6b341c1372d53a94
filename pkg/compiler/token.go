package compiler

import (
	"fmt"
	"strings"
)

// WordClass identifies which keyword a lexed word is spelled from.
type WordClass int

const (
	Stack WordClass = iota // letters drawn from s,t,a,c,k
	Bad                    // letters drawn from b,a,d
)

// wordLetters is indexed by WordClass; each entry lists the class's letters
// in count order.
var wordLetters = [...]string{
	Stack: "stack",
	Bad:   "bad",
}

func (c WordClass) String() string {
	switch c {
	case Stack:
		return "Stack"
	case Bad:
		return "Bad"
	default:
		return fmt.Sprintf("WordClass(%d)", int(c))
	}
}

// Letters returns the letters of the class in count order.
func (c WordClass) Letters() string {
	if int(c) >= 0 && int(c) < len(wordLetters) {
		return wordLetters[c]
	}
	return ""
}

// Word is a single lexical unit produced by the Scanner.
type Word struct {
	Class  WordClass
	Counts []uint32 // raw occurrence count per letter of Class.Letters()
	Pos    Pos      // position of the word's first letter
}

func (w Word) String() string {
	return fmt.Sprintf("%-5s %v  %s", w.Class, w.Counts, w.Pos)
}

// Spell renders the canonical spelling of w: each letter of its class
// repeated by its raw count, in count order.
func (w Word) Spell() string {
	letters := w.Class.Letters()
	var sb strings.Builder
	for i, n := range w.Counts {
		if i >= len(letters) {
			break
		}
		sb.WriteString(strings.Repeat(letters[i:i+1], int(n)))
	}
	return sb.String()
}

// RecordLen is the number of fields in a Record.
const RecordLen = 8

// Record fuses one Stack word and one Bad word. Fields 0-4 are the Stack
// word's counts minus one (s,t,a,c,k), fields 5-7 the Bad word's (b,a,d).
type Record struct {
	Fields [RecordLen]uint32
	Pos    Pos // position of the Stack word
}

func (r Record) String() string {
	return fmt.Sprintf("%v  %s", r.Fields, r.Pos)
}

// IsZero reports whether every field of r is zero.
func (r Record) IsZero() bool {
	return r.Fields == [RecordLen]uint32{}
}

// Words splits r back into the raw-count words it was paired from.
func (r Record) Words() (Word, Word) {
	s := Word{Class: Stack, Counts: make([]uint32, 5), Pos: r.Pos}
	b := Word{Class: Bad, Counts: make([]uint32, 3), Pos: r.Pos}
	for i := 0; i < 5; i++ {
		s.Counts[i] = r.Fields[i] + 1
	}
	for i := 0; i < 3; i++ {
		b.Counts[i] = r.Fields[5+i] + 1
	}
	return s, b
}

// EncodeRecord renders r as source text: its Stack word and its Bad word
// separated by a space.
func EncodeRecord(r Record) string {
	s, b := r.Words()
	return s.Spell() + " " + b.Spell()
}
