package compiler

import (
	"fmt"
	"strings"
)

// Type is a value type. Unit is only meaningful as a return type.
type Type int

const (
	I8 Type = iota
	I16
	I32
	I64
	Unit
)

var typeNames = [...]string{I8: "i8", I16: "i16", I32: "i32", I64: "i64", Unit: "unit"}

func (t Type) String() string {
	if int(t) >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Bits returns the integer width of t, or 0 for Unit.
func (t Type) Bits() int {
	switch t {
	case I8:
		return 8
	case I16:
		return 16
	case I32:
		return 32
	case I64:
		return 64
	default:
		return 0
	}
}

// TypeFromID decodes a type id.
func TypeFromID(id uint32) (Type, bool) {
	if id < uint32(len(typeNames)) {
		return Type(id), true
	}
	return 0, false
}

// BinaryOp is an integer binary operator.
type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mult
	Div
	Lsh
	Rsh
)

var binaryOpNames = [...]string{Add: "add", Sub: "sub", Mult: "mul", Div: "sdiv", Lsh: "shl", Rsh: "ashr"}

func (op BinaryOp) String() string {
	if int(op) >= 0 && int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// BinaryOpFromID decodes a binary operator id.
func BinaryOpFromID(id uint32) (BinaryOp, bool) {
	if id < uint32(len(binaryOpNames)) {
		return BinaryOp(id), true
	}
	return 0, false
}

// UnaryOp is a unary operator.
type UnaryOp int

const (
	Deref UnaryOp = iota
	Not
)

func (op UnaryOp) String() string {
	switch op {
	case Deref:
		return "deref"
	case Not:
		return "not"
	default:
		return fmt.Sprintf("UnaryOp(%d)", int(op))
	}
}

// UnaryOpFromID decodes a unary operator id.
func UnaryOpFromID(id uint32) (UnaryOp, bool) {
	switch id {
	case 0:
		return Deref, true
	case 1:
		return Not, true
	}
	return 0, false
}

// Linkage is the visibility of a declared function.
type Linkage int

const (
	External Linkage = iota
	Internal
)

func (l Linkage) String() string {
	switch l {
	case External:
		return "external"
	case Internal:
		return "internal"
	default:
		return fmt.Sprintf("Linkage(%d)", int(l))
	}
}

// LinkageFromID decodes a linkage id.
func LinkageFromID(id uint32) (Linkage, bool) {
	switch id {
	case 0:
		return External, true
	case 1:
		return Internal, true
	}
	return 0, false
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
type Expr interface {
	exprNode()
	String() string
}

// BinaryExpr is Left Op Right.
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}
func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Op, b.Left, b.Right)
}

// UnaryExpr is Op Operand.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

func (*UnaryExpr) exprNode()        {}
func (u *UnaryExpr) String() string { return fmt.Sprintf("(%s %s)", u.Op, u.Operand) }

// InvokeExpr calls a previously declared function.
type InvokeExpr struct {
	Name string
	Args []Expr
}

func (*InvokeExpr) exprNode() {}
func (c *InvokeExpr) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(args, ", "))
}

// BlockExpr evaluates each expression for its effect.
type BlockExpr struct {
	Exprs []Expr
}

func (*BlockExpr) exprNode() {}
func (b *BlockExpr) String() string {
	parts := make([]string, len(b.Exprs))
	for i, e := range b.Exprs {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, "; ") + "}"
}

// AssignmentExpr stores Value into slot Local.
type AssignmentExpr struct {
	Local uint32
	Value Expr
}

func (*AssignmentExpr) exprNode()        {}
func (a *AssignmentExpr) String() string { return fmt.Sprintf("$%d = %s", a.Local, a.Value) }

// LocalExpr reads slot Local.
type LocalExpr struct {
	Local uint32
}

func (*LocalExpr) exprNode()        {}
func (l *LocalExpr) String() string { return fmt.Sprintf("$%d", l.Local) }

// ConstantExpr is an integer literal of a fixed width.
type ConstantExpr struct {
	Type  Type
	Value uint32
}

func (*ConstantExpr) exprNode()        {}
func (c *ConstantExpr) String() string { return fmt.Sprintf("%s %d", c.Type, c.Value) }

// StringLitExpr is constant byte data; it evaluates to the data's address.
type StringLitExpr struct {
	Value string
}

func (*StringLitExpr) exprNode()        {}
func (s *StringLitExpr) String() string { return fmt.Sprintf("%q", s.Value) }

// ReturnExpr returns Value from the enclosing function.
type ReturnExpr struct {
	Value Expr
}

func (*ReturnExpr) exprNode()        {}
func (r *ReturnExpr) String() string { return fmt.Sprintf("return %s", r.Value) }

//  Items

// Item is a top-level declaration or definition.
type Item interface {
	itemNode()
	String() string
}

// FunctionDecl declares a function signature.
type FunctionDecl struct {
	Name       string
	ReturnType Type
	Params     []Type
	Linkage    Linkage
}

func (*FunctionDecl) itemNode() {}
func (d *FunctionDecl) String() string {
	params := make([]string, len(d.Params))
	for i, p := range d.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("decl %s %s %s(%s)", d.Linkage, d.ReturnType, d.Name, strings.Join(params, ", "))
}

// FunctionDef gives a declared function its locals and body. Slots are
// numbered over the declaration's parameters followed by Locals.
type FunctionDef struct {
	Name   string
	Locals []Type
	Body   Expr
}

func (*FunctionDef) itemNode() {}
func (d *FunctionDef) String() string {
	locals := make([]string, len(d.Locals))
	for i, l := range d.Locals {
		locals[i] = l.String()
	}
	return fmt.Sprintf("def %s [%s] %s", d.Name, strings.Join(locals, ", "), d.Body)
}
