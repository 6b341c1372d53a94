package compiler

import "io"

// WordSource yields words one at a time and io.EOF at the end.
type WordSource interface {
	Next() (Word, error)
}

// RecordSource yields records one at a time and io.EOF at the end.
type RecordSource interface {
	Next() (Record, error)
}

// Pairer fuses consecutive (Stack, Bad) word pairs into records.
type Pairer struct {
	src WordSource
	err error
}

// NewPairer returns a Pairer reading from src.
func NewPairer(src WordSource) *Pairer {
	return &Pairer{src: src}
}

// Next returns the next record, or io.EOF once the words are exhausted.
func (p *Pairer) Next() (Record, error) {
	if p.err != nil {
		return Record{}, p.err
	}
	r, err := p.next()
	if err != nil {
		p.err = err
	}
	return r, err
}

func (p *Pairer) next() (Record, error) {
	first, err := p.src.Next()
	if err != nil {
		return Record{}, err
	}
	second, err := p.src.Next()
	if err == io.EOF {
		return Record{}, errorf(KindFormat, first.Pos, "odd number of words: %s word has no partner", first.Class)
	}
	if err != nil {
		return Record{}, err
	}
	return fuse(first, second)
}

// fuse builds a record from a Stack word followed by a Bad word.
func fuse(s, b Word) (Record, error) {
	if s.Class != Stack || b.Class != Bad {
		return Record{}, errorf(KindFormat, s.Pos, "expected Stack word followed by Bad word, got %s then %s", s.Class, b.Class)
	}
	if len(s.Counts) != 5 || len(b.Counts) != 3 {
		return Record{}, errorf(KindFormat, s.Pos, "malformed word counts")
	}

	r := Record{Pos: s.Pos}
	counts := append(append(make([]uint32, 0, RecordLen), s.Counts...), b.Counts...)
	for i, n := range counts {
		if n == 0 {
			return Record{}, errorf(KindFormat, s.Pos, "field %d has a zero letter count", i)
		}
		r.Fields[i] = n - 1
	}
	return r, nil
}

// Pair fuses a complete word list into records.
func Pair(words []Word) ([]Record, error) {
	p := NewPairer(&wordSlice{words: words})
	var records []Record
	for {
		r, err := p.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, r)
	}
}

// wordSlice adapts a slice to WordSource.
type wordSlice struct {
	words []Word
	i     int
}

func (s *wordSlice) Next() (Word, error) {
	if s.i >= len(s.words) {
		return Word{}, io.EOF
	}
	w := s.words[s.i]
	s.i++
	return w, nil
}

// recordSlice adapts a slice to RecordSource.
type recordSlice struct {
	records []Record
	i       int
}

// NewRecordSource returns a RecordSource over records.
func NewRecordSource(records []Record) RecordSource {
	return &recordSlice{records: records}
}

func (s *recordSlice) Next() (Record, error) {
	if s.i >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.i]
	s.i++
	return r, nil
}
