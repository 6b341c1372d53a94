// Package asm assembles a readable mnemonic listing into stackbad source.
//
//	; f returns 7
//	decl ext i32 f
//	def f
//	ret
//	const i32 7
//
// Each mnemonic becomes one or more records; every record is written as a
// Stack word and a Bad word on its own line. The header record is emitted
// first.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"stackbad/pkg/compiler"
)

var binaryOps = map[string]compiler.BinaryOp{
	"add": compiler.Add,
	"sub": compiler.Sub,
	"mul": compiler.Mult,
	"div": compiler.Div,
	"shl": compiler.Lsh,
	"shr": compiler.Rsh,
}

var unaryOps = map[string]compiler.UnaryOp{
	"deref": compiler.Deref,
	"not":   compiler.Not,
}

var types = map[string]compiler.Type{
	"i8":   compiler.I8,
	"i16":  compiler.I16,
	"i32":  compiler.I32,
	"i64":  compiler.I64,
	"unit": compiler.Unit,
}

var linkages = map[string]compiler.Linkage{
	"ext":      compiler.External,
	"external": compiler.External,
	"int":      compiler.Internal,
	"internal": compiler.Internal,
}

type Assembler struct {
	out     strings.Builder
	records []compiler.Record
}

type parsedLine struct {
	lineNo   int
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{}
}

// Assemble translates a listing into stackbad source text.
func Assemble(code string) (string, error) {
	return NewAssembler().Assemble(code)
}

// Records assembles a listing and returns the records it encodes,
// including the header.
func Records(code string) ([]compiler.Record, error) {
	a := NewAssembler()
	if _, err := a.Assemble(code); err != nil {
		return nil, err
	}
	return a.records, nil
}

func (a *Assembler) Assemble(code string) (string, error) {
	a.out.Reset()
	a.records = nil
	a.emit("header", compiler.HeaderRecord())

	for i, raw := range strings.Split(code, "\n") {
		p, err := parseLine(raw, i+1)
		if err != nil {
			return "", err
		}
		if p.mnemonic == "" {
			continue
		}
		recs, err := a.encode(p)
		if err != nil {
			return "", err
		}
		a.emit(strings.TrimSpace(stripComment(raw)), recs...)
	}
	return a.out.String(), nil
}

// emit writes recs, annotating the first with comment.
func (a *Assembler) emit(comment string, recs ...compiler.Record) {
	for i, r := range recs {
		a.out.WriteString(compiler.EncodeRecord(r))
		if i == 0 && comment != "" {
			a.out.WriteString("  # ")
			a.out.WriteString(comment)
		}
		a.out.WriteString("\n")
	}
	a.records = append(a.records, recs...)
}

func (a *Assembler) encode(p parsedLine) ([]compiler.Record, error) {
	ops := p.operands
	m := p.mnemonic

	if op, ok := binaryOps[m]; ok {
		if err := expectOperands(p, 0); err != nil {
			return nil, err
		}
		return []compiler.Record{compiler.BinaryRecord(op)}, nil
	}
	if op, ok := unaryOps[m]; ok {
		if err := expectOperands(p, 0); err != nil {
			return nil, err
		}
		return []compiler.Record{compiler.UnaryRecord(op)}, nil
	}

	switch m {
	case "decl":
		if len(ops) < 3 {
			return nil, fmt.Errorf("decl expects linkage, return type and name on line %d", p.lineNo)
		}
		link, ok := linkages[ops[0]]
		if !ok {
			return nil, fmt.Errorf("unknown linkage %q on line %d", ops[0], p.lineNo)
		}
		ret, err := parseType(ops[1], p.lineNo)
		if err != nil {
			return nil, err
		}
		params, err := parseTypes(ops[3:], p.lineNo)
		if err != nil {
			return nil, err
		}
		recs := []compiler.Record{compiler.DeclRecord(link, ret, len(params))}
		return withName(recs, ops[2], params, p.lineNo)

	case "def":
		if len(ops) < 1 {
			return nil, fmt.Errorf("def expects a name on line %d", p.lineNo)
		}
		locals, err := parseTypes(ops[1:], p.lineNo)
		if err != nil {
			return nil, err
		}
		recs := []compiler.Record{compiler.DefRecord(len(locals))}
		return withName(recs, ops[0], locals, p.lineNo)

	case "call":
		if err := expectOperands(p, 1); err != nil {
			return nil, err
		}
		return withName([]compiler.Record{compiler.InvokeRecord()}, ops[0], nil, p.lineNo)

	case "block", "end", "ret":
		if err := expectOperands(p, 0); err != nil {
			return nil, err
		}
		switch m {
		case "block":
			return []compiler.Record{compiler.BlockRecord()}, nil
		case "end":
			return []compiler.Record{compiler.BlockEndRecord()}, nil
		}
		return []compiler.Record{compiler.ReturnRecord()}, nil

	case "set", "get":
		if err := expectOperands(p, 1); err != nil {
			return nil, err
		}
		idx, err := parseImmediate(ops[0], p.lineNo)
		if err != nil {
			return nil, err
		}
		if m == "set" {
			return []compiler.Record{compiler.AssignRecord(idx)}, nil
		}
		return []compiler.Record{compiler.LocalRecord(idx)}, nil

	case "const":
		if err := expectOperands(p, 2); err != nil {
			return nil, err
		}
		ty, err := parseType(ops[0], p.lineNo)
		if err != nil {
			return nil, err
		}
		if ty == compiler.Unit {
			return nil, fmt.Errorf("constant of type unit on line %d", p.lineNo)
		}
		v, err := parseImmediate(ops[1], p.lineNo)
		if err != nil {
			return nil, err
		}
		return []compiler.Record{compiler.ConstRecord(ty, v)}, nil

	case "str":
		if err := expectOperands(p, 1); err != nil {
			return nil, err
		}
		packed, err := compiler.EncodeName(ops[0])
		if err != nil {
			return nil, fmt.Errorf("cannot pack string on line %d: %v", p.lineNo, err)
		}
		return append([]compiler.Record{compiler.StringRecord()}, packed...), nil
	}
	return nil, fmt.Errorf("unknown instruction on line %d: %s", p.lineNo, m)
}

// withName appends the packed name and one type record per type to recs.
func withName(recs []compiler.Record, name string, tys []compiler.Type, lineNo int) ([]compiler.Record, error) {
	if !isIdentifier(name) {
		return nil, fmt.Errorf("invalid name %q on line %d", name, lineNo)
	}
	packed, err := compiler.EncodeName(name)
	if err != nil {
		return nil, fmt.Errorf("cannot pack name on line %d: %v", lineNo, err)
	}
	recs = append(recs, packed...)
	for _, t := range tys {
		recs = append(recs, compiler.TypeRecord(t))
	}
	return recs, nil
}

func expectOperands(p parsedLine, n int) error {
	if len(p.operands) != n {
		return fmt.Errorf("%s expects %d operands on line %d", p.mnemonic, n, p.lineNo)
	}
	return nil
}

func parseType(s string, lineNo int) (compiler.Type, error) {
	t, ok := types[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown type %q on line %d", s, lineNo)
	}
	return t, nil
}

func parseTypes(ss []string, lineNo int) ([]compiler.Type, error) {
	var out []compiler.Type
	for _, s := range ss {
		t, err := parseType(s, lineNo)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func parseImmediate(s string, lineNo int) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid immediate value on line %d: %s", lineNo, s)
	}
	return uint32(v), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if !isLetter && !(i > 0 && isDigit) {
			return false
		}
	}
	return true
}

// stripComment removes a trailing ';' comment outside of a quoted string.
func stripComment(raw string) string {
	inQuote := false
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return raw[:i]
			}
		}
	}
	return raw
}

func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComment(raw))
	if line == "" {
		return p, nil
	}

	fields := strings.Fields(line)
	p.mnemonic = strings.ToLower(fields[0])

	// str keeps its quoted operand intact, spaces included.
	if p.mnemonic == "str" {
		rest := strings.TrimSpace(line[len(fields[0]):])
		s, err := strconv.Unquote(rest)
		if err != nil {
			return p, fmt.Errorf("invalid string literal on line %d", lineNo)
		}
		p.operands = []string{s}
		return p, nil
	}

	p.operands = fields[1:]
	return p, nil
}
