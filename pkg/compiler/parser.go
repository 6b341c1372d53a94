package compiler

import (
	"io"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Parser consumes the record stream produced by the Pairer and builds the
// item list. Each record is a tagged instruction; field 6 selects the
// variant and the remaining fields are checked against the variant's shape.
//
// Grammar:
//
//	unit     = header item*
//	header   = [0,0,0,0,0,0,0,0]
//	item     = decl | def
//	decl     = [0,0,0,0,0,link,rty,n] name type{n}
//	def      = [0,0,1,0,0,0,n,0] name type{n} expr
//	type     = [0,0,0,0,0,0,tid,0]
//	expr     = [0,op,0,0,0,0,0,0] expr expr          binary
//	         | [0,op,0,0,0,0,1,0] expr               unary
//	         | [0,0,0,0,0,0,2,0] name expr*          invoke, one expr per parameter
//	         | [0,0,0,0,0,0,3,0] expr* [0,0,0,0,1,0,0,0]   block
//	         | [0,0,idx,0,0,0,4,0] expr              assignment
//	         | [0,0,idx,0,0,0,5,0]                   local
//	         | [0,0,val,ty,0,0,6,0]                  constant
//	         | [0,0,0,0,0,0,7,0] expr                return
//	         | [0,0,0,0,0,0,8,0] name                string literal
//	name     = packed nibble pairs, ended by a pair with a zero high nibble
type Parser struct {
	src     RecordSource
	peeked  *Record
	last    Pos // position of the most recently consumed record
	started bool

	syms  *SymbolTable
	items []Item
	log   *zap.Logger
}

// Expression tags carried in field 6.
const (
	tagBinary uint32 = iota
	tagUnary
	tagInvoke
	tagBlock
	tagAssign
	tagLocal
	tagConst
	tagReturn
	tagString
)

// Field indices with a fixed role.
const (
	fieldOp    = 1
	fieldArg   = 2 // slot index, constant value, or def marker
	fieldType  = 3 // constant type id
	fieldBlock = 4 // block terminator marker
	fieldLink  = 5
	fieldTag   = 6
	fieldCount = 7
)

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithSymbolTable makes the parser record declarations into syms.
func WithSymbolTable(syms *SymbolTable) ParserOption {
	return func(p *Parser) { p.syms = syms }
}

// WithParserLogger sets the logger used for debug output.
func WithParserLogger(log *zap.Logger) ParserOption {
	return func(p *Parser) { p.log = log }
}

// NewParser returns a parser reading records from src.
func NewParser(src RecordSource, opts ...ParserOption) *Parser {
	p := &Parser{src: src, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.syms == nil {
		p.syms = NewSymbolTable()
	}
	return p
}

// Parse parses a complete record list.
func Parse(records []Record) ([]Item, error) {
	return NewParser(NewRecordSource(records)).Parse()
}

// Symbols returns the table of declared functions.
func (p *Parser) Symbols() *SymbolTable { return p.syms }

// Parse checks the header record and then parses items until the record
// stream is exhausted.
func (p *Parser) Parse() ([]Item, error) {
	if err := p.header(); err != nil {
		return nil, err
	}
	for {
		_, ok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if !ok {
			return p.items, nil
		}
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		p.log.Debug("parsed item", zap.Stringer("item", item))
		p.items = append(p.items, item)
	}
}

func (p *Parser) header() error {
	if p.started {
		return nil
	}
	p.started = true
	rec, err := p.src.Next()
	if err == io.EOF {
		return errorf(KindFormat, Pos{Line: 1, Col: 1}, "missing header record")
	}
	if err != nil {
		return err
	}
	p.last = rec.Pos
	if !rec.IsZero() {
		return errorf(KindFormat, rec.Pos, "header record must be all zero, got %v", rec.Fields)
	}
	return nil
}

// peek returns the next record without consuming it. ok is false at the end
// of the stream.
func (p *Parser) peek() (Record, bool, error) {
	if p.peeked != nil {
		return *p.peeked, true, nil
	}
	rec, err := p.src.Next()
	if err == io.EOF {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	p.peeked = &rec
	return rec, true, nil
}

// next consumes the next record. Running out of records is a syntax error
// reported at the last record seen.
func (p *Parser) next() (Record, error) {
	rec, ok, err := p.peek()
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, errorf(KindSyntax, p.last, "unexpected end of records")
	}
	p.peeked = nil
	p.last = rec.Pos
	return rec, nil
}

// zeroExcept reports whether every field of r other than keep is zero.
func zeroExcept(r Record, keep ...int) bool {
	for i, v := range r.Fields {
		if v == 0 {
			continue
		}
		kept := false
		for _, k := range keep {
			if i == k {
				kept = true
				break
			}
		}
		if !kept {
			return false
		}
	}
	return true
}

func isBlockEnd(r Record) bool {
	return r.Fields == [RecordLen]uint32{fieldBlock: 1}
}

func (p *Parser) parseItem() (Item, error) {
	rec, err := p.next()
	if err != nil {
		return nil, err
	}
	f := rec.Fields
	switch {
	case f[fieldArg] == 1 && zeroExcept(rec, fieldArg, fieldTag):
		return p.parseFuncDef(rec)
	case zeroExcept(rec, fieldLink, fieldTag, fieldCount):
		return p.parseFuncDecl(rec)
	default:
		return nil, errorf(KindSyntax, rec.Pos, "record %v does not start a declaration or definition", f)
	}
}

func (p *Parser) parseFuncDecl(rec Record) (*FunctionDecl, error) {
	f := rec.Fields
	linkage, ok := LinkageFromID(f[fieldLink])
	if !ok {
		return nil, errorf(KindSyntax, rec.Pos, "unknown linkage id %d", f[fieldLink])
	}
	ret, ok := TypeFromID(f[fieldTag])
	if !ok {
		return nil, errorf(KindSyntax, rec.Pos, "unknown return type id %d", f[fieldTag])
	}
	name, err := p.parseName(rec.Pos, false)
	if err != nil {
		return nil, err
	}
	params, err := p.parseTypes(f[fieldCount])
	if err != nil {
		return nil, err
	}

	decl := &FunctionDecl{Name: name, ReturnType: ret, Params: params, Linkage: linkage}
	if !p.syms.Declare(decl) {
		return nil, errorf(KindSyntax, rec.Pos, "function %q is already declared", name)
	}
	return decl, nil
}

func (p *Parser) parseFuncDef(rec Record) (*FunctionDef, error) {
	name, err := p.parseName(rec.Pos, false)
	if err != nil {
		return nil, err
	}
	decl, ok := p.syms.Lookup(name)
	if !ok {
		return nil, errorf(KindSyntax, rec.Pos, "definition of undeclared function %q", name)
	}
	locals, err := p.parseTypes(rec.Fields[fieldTag])
	if err != nil {
		return nil, err
	}
	if !p.syms.EnterFunction(decl, locals) {
		return nil, errorf(KindSyntax, rec.Pos, "function %q is already defined", name)
	}
	defer p.syms.ExitFunction()

	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &FunctionDef{Name: name, Locals: locals, Body: body}, nil
}

// parseTypes reads n type records.
func (p *Parser) parseTypes(n uint32) ([]Type, error) {
	var types []Type
	for i := uint32(0); i < n; i++ {
		rec, err := p.next()
		if err != nil {
			return nil, err
		}
		if !zeroExcept(rec, fieldTag) {
			return nil, errorf(KindSyntax, rec.Pos, "record %v is not a type record", rec.Fields)
		}
		ty, ok := TypeFromID(rec.Fields[fieldTag])
		if !ok {
			return nil, errorf(KindSyntax, rec.Pos, "unknown type id %d", rec.Fields[fieldTag])
		}
		types = append(types, ty)
	}
	return types, nil
}

// parseName decodes a packed name. at is the position reported for an empty
// name; allowEmpty permits one.
func (p *Parser) parseName(at Pos, allowEmpty bool) (string, error) {
	var buf []byte
	for {
		rec, err := p.next()
		if err != nil {
			return "", err
		}
		var done bool
		buf, done, err = unpack(rec, buf)
		if err != nil {
			return "", errorf(KindSyntax, rec.Pos, "malformed packed name: %v", err)
		}
		if !done {
			continue
		}
		if !utf8.Valid(buf) {
			return "", errorf(KindSyntax, rec.Pos, "packed name is not valid UTF-8")
		}
		if len(buf) == 0 && !allowEmpty {
			return "", errorf(KindSyntax, at, "empty name")
		}
		return string(buf), nil
	}
}

func (p *Parser) parseExpr() (Expr, error) {
	rec, err := p.next()
	if err != nil {
		return nil, err
	}
	if isBlockEnd(rec) {
		return nil, errorf(KindSyntax, rec.Pos, "unexpected block terminator")
	}

	f := rec.Fields
	switch f[fieldTag] {
	case tagBinary:
		if !zeroExcept(rec, fieldOp) {
			break
		}
		op, ok := BinaryOpFromID(f[fieldOp])
		if !ok {
			return nil, errorf(KindSyntax, rec.Pos, "unknown binary operator id %d", f[fieldOp])
		}
		left, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		right, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil

	case tagUnary:
		if !zeroExcept(rec, fieldOp, fieldTag) {
			break
		}
		op, ok := UnaryOpFromID(f[fieldOp])
		if !ok {
			return nil, errorf(KindSyntax, rec.Pos, "unknown unary operator id %d", f[fieldOp])
		}
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Operand: operand}, nil

	case tagInvoke:
		if !zeroExcept(rec, fieldTag) {
			break
		}
		return p.parseInvoke(rec)

	case tagBlock:
		if !zeroExcept(rec, fieldTag) {
			break
		}
		return p.parseBlock()

	case tagAssign:
		if !zeroExcept(rec, fieldArg, fieldTag) {
			break
		}
		if err := p.checkSlot(rec); err != nil {
			return nil, err
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &AssignmentExpr{Local: f[fieldArg], Value: value}, nil

	case tagLocal:
		if !zeroExcept(rec, fieldArg, fieldTag) {
			break
		}
		if err := p.checkSlot(rec); err != nil {
			return nil, err
		}
		return &LocalExpr{Local: f[fieldArg]}, nil

	case tagConst:
		if !zeroExcept(rec, fieldArg, fieldType, fieldTag) {
			break
		}
		ty, ok := TypeFromID(f[fieldType])
		if !ok || ty == Unit {
			return nil, errorf(KindSyntax, rec.Pos, "invalid constant type id %d", f[fieldType])
		}
		if bits := ty.Bits(); bits < 32 && f[fieldArg]>>uint(bits) != 0 {
			return nil, errorf(KindSyntax, rec.Pos, "constant %d does not fit in %s", f[fieldArg], ty)
		}
		return &ConstantExpr{Type: ty, Value: f[fieldArg]}, nil

	case tagReturn:
		if !zeroExcept(rec, fieldTag) {
			break
		}
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ReturnExpr{Value: value}, nil

	case tagString:
		if !zeroExcept(rec, fieldTag) {
			break
		}
		s, err := p.parseName(rec.Pos, true)
		if err != nil {
			return nil, err
		}
		return &StringLitExpr{Value: s}, nil
	}
	return nil, errorf(KindSyntax, rec.Pos, "record %v is not an expression", f)
}

func (p *Parser) parseInvoke(rec Record) (*InvokeExpr, error) {
	name, err := p.parseName(rec.Pos, false)
	if err != nil {
		return nil, err
	}
	decl, ok := p.syms.Lookup(name)
	if !ok {
		return nil, errorf(KindSyntax, rec.Pos, "call to undeclared function %q", name)
	}
	args := make([]Expr, 0, len(decl.Params))
	for range decl.Params {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	return &InvokeExpr{Name: name, Args: args}, nil
}

func (p *Parser) parseBlock() (*BlockExpr, error) {
	block := &BlockExpr{}
	for {
		rec, ok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errorf(KindSyntax, p.last, "unterminated block")
		}
		if isBlockEnd(rec) {
			if _, err := p.next(); err != nil {
				return nil, err
			}
			return block, nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		block.Exprs = append(block.Exprs, e)
	}
}

func (p *Parser) checkSlot(rec Record) error {
	idx := rec.Fields[fieldArg]
	if _, ok := p.syms.Slot(idx); !ok {
		return errorf(KindSyntax, rec.Pos, "slot %d out of range (function has %d slots)", idx, p.syms.SlotCount())
	}
	return nil
}
