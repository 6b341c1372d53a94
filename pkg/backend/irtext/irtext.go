// Package irtext implements the compiler backend interface on the pure-Go
// llir/llvm IR builder and emits textual LLVM IR. Each builder records the
// structural problems the native verifier would reject: a single terminator
// closing the entry block and matching operand widths.
package irtext

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"stackbad/pkg/compiler"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

func irType(t compiler.Type) types.Type {
	switch t {
	case compiler.I8:
		return types.I8
	case compiler.I16:
		return types.I16
	case compiler.I32:
		return types.I32
	case compiler.I64:
		return types.I64
	default:
		return types.Void
	}
}

func isPointer(t types.Type) bool {
	_, ok := t.(*types.PointerType)
	return ok
}

// operand renders v the way it appears as an instruction operand.
func operand(v value.Value) string {
	return v.Type().String() + " " + v.Ident()
}

// Module is a compilation unit built with llir.
type Module struct {
	name    string
	mod     *ir.Module
	byName  map[string]*function
	strings int
}

type function struct {
	fn      *ir.Func
	ret     compiler.Type
	params  []compiler.Type
	defined bool
}

// New returns an empty module.
func New(name string) *Module {
	return &Module{name: name, mod: ir.NewModule(), byName: make(map[string]*function)}
}

func (m *Module) DeclareFunction(name string, ret compiler.Type, params []compiler.Type, linkage compiler.Linkage) error {
	if _, exists := m.byName[name]; exists {
		return fmt.Errorf("function @%s redeclared", name)
	}
	irParams := make([]*ir.Param, len(params))
	for i, p := range params {
		if p.Bits() == 0 {
			return fmt.Errorf("parameter %d of @%s has no width", i, name)
		}
		irParams[i] = ir.NewParam("", irType(p))
	}
	fn := m.mod.NewFunc(name, irType(ret), irParams...)
	if linkage == compiler.Internal {
		fn.Linkage = enum.LinkageInternal
	}
	m.byName[name] = &function{fn: fn, ret: ret, params: append([]compiler.Type(nil), params...)}
	return nil
}

func (m *Module) BeginFunction(name string) (compiler.FunctionBuilder, error) {
	f, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("function @%s is not declared", name)
	}
	if f.defined {
		return nil, fmt.Errorf("function @%s already has a body", name)
	}
	f.defined = true
	return &Builder{m: m, f: f, entry: f.fn.NewBlock("entry")}, nil
}

// Emit writes the module text.
func (m *Module) Emit(w io.Writer) error {
	_, err := io.WriteString(w, m.String())
	return err
}

func (m *Module) Dispose() {}

func (m *Module) String() string {
	var sb strings.Builder
	if _, err := m.mod.WriteTo(&sb); err != nil {
		return fmt.Sprintf("; ModuleID = '%s'\n; %v\n", m.name, err)
	}
	return fmt.Sprintf("; ModuleID = '%s'\n\n", m.name) + strings.TrimLeft(sb.String(), "\n")
}

// Builder appends instructions to one function's entry block.
type Builder struct {
	m        *Module
	f        *function
	entry    *ir.Block
	problems []string
}

func (b *Builder) problem(format string, args ...any) {
	b.problems = append(b.problems, fmt.Sprintf(format, args...))
}

// open reports whether the entry block still accepts instructions.
func (b *Builder) open(inst string) bool {
	if b.entry.Term != nil {
		b.problem("instruction after terminator: %s", inst)
		return false
	}
	return true
}

func (b *Builder) val(v compiler.Value) value.Value {
	if iv, ok := v.(value.Value); ok && iv != nil {
		return iv
	}
	b.problem("operand %v is not a value", v)
	return constant.NewUndef(types.I64)
}

func (b *Builder) Param(i int) compiler.Value {
	if i < 0 || i >= len(b.f.fn.Params) {
		b.problem("parameter %d out of range", i)
		return constant.NewUndef(types.I64)
	}
	return b.f.fn.Params[i]
}

func (b *Builder) Alloca(ty compiler.Type) compiler.Value {
	t := irType(ty)
	if !b.open("alloca") {
		return constant.NewUndef(types.NewPointer(t))
	}
	return b.entry.NewAlloca(t)
}

func (b *Builder) Store(slot compiler.Value, v compiler.Value) {
	p, x := b.val(slot), b.val(v)
	pt, ok := p.Type().(*types.PointerType)
	switch {
	case !ok:
		b.problem("store address %s is not a pointer", operand(p))
	case !pt.ElemType.Equal(x.Type()):
		b.problem("store of %s into slot of type %s", x.Type(), pt.ElemType)
	case b.open("store"):
		b.entry.NewStore(x, p)
	}
}

func (b *Builder) Load(ty compiler.Type, slot compiler.Value) compiler.Value {
	t, p := irType(ty), b.val(slot)
	if !isPointer(p.Type()) {
		b.problem("load address %s is not a pointer", operand(p))
		return constant.NewUndef(t)
	}
	if !b.open("load") {
		return constant.NewUndef(t)
	}
	return b.entry.NewLoad(t, p)
}

func (b *Builder) Binary(op compiler.BinaryOp, x, y compiler.Value) compiler.Value {
	l, r := b.val(x), b.val(y)
	if !l.Type().Equal(r.Type()) || isPointer(l.Type()) {
		b.problem("%s operands have mismatched types %s and %s", op, l.Type(), r.Type())
		return constant.NewUndef(l.Type())
	}
	if !b.open(op.String()) {
		return constant.NewUndef(l.Type())
	}
	switch op {
	case compiler.Add:
		return b.entry.NewAdd(l, r)
	case compiler.Sub:
		return b.entry.NewSub(l, r)
	case compiler.Mult:
		return b.entry.NewMul(l, r)
	case compiler.Div:
		return b.entry.NewSDiv(l, r)
	case compiler.Lsh:
		return b.entry.NewShl(l, r)
	default:
		return b.entry.NewAShr(l, r)
	}
}

func (b *Builder) Not(v compiler.Value) compiler.Value {
	x := b.val(v)
	it, ok := x.Type().(*types.IntType)
	if !ok {
		b.problem("not operand %s is not an integer", operand(x))
		return constant.NewUndef(x.Type())
	}
	if !b.open("xor") {
		return constant.NewUndef(it)
	}
	return b.entry.NewXor(x, constant.NewInt(it, -1))
}

func (b *Builder) LoadAddress(ty compiler.Type, addr compiler.Value) compiler.Value {
	t, a := irType(ty), b.val(addr)
	if isPointer(a.Type()) {
		b.problem("inttoptr operand %s is already a pointer", operand(a))
		return constant.NewUndef(t)
	}
	if !b.open("inttoptr") {
		return constant.NewUndef(t)
	}
	p := b.entry.NewIntToPtr(a, types.NewPointer(t))
	return b.entry.NewLoad(t, p)
}

func (b *Builder) Call(name string, args []compiler.Value) compiler.Value {
	callee, ok := b.m.byName[name]
	if !ok {
		b.problem("call to undeclared function @%s", name)
		return constant.NewUndef(types.I64)
	}
	ret := irType(callee.ret)
	if len(args) != len(callee.params) {
		b.problem("call to @%s with %d arguments, want %d", name, len(args), len(callee.params))
	}
	vals := make([]value.Value, len(args))
	bad := len(args) != len(callee.params)
	for i, a := range args {
		vals[i] = b.val(a)
		if i < len(callee.params) && !vals[i].Type().Equal(irType(callee.params[i])) {
			b.problem("argument %d of @%s has type %s, want %s", i, name, vals[i].Type(), irType(callee.params[i]))
			bad = true
		}
	}
	if bad || !b.open("call @"+name) {
		if callee.ret == compiler.Unit {
			return nil
		}
		return constant.NewUndef(ret)
	}
	call := b.entry.NewCall(callee.fn, vals...)
	if callee.ret == compiler.Unit {
		return nil
	}
	return call
}

func (b *Builder) Const(ty compiler.Type, v uint64) compiler.Value {
	it, ok := irType(ty).(*types.IntType)
	if !ok {
		b.problem("constant of type %s", ty)
		return constant.NewUndef(types.I64)
	}
	if bits := ty.Bits(); bits < 64 {
		v &= 1<<uint(bits) - 1
	}
	return &constant.Int{Typ: it, X: new(big.Int).SetUint64(v)}
}

func (b *Builder) GlobalData(data []byte) compiler.Value {
	g := b.m.mod.NewGlobalDef(".str."+strconv.Itoa(b.m.strings), constant.NewCharArray(append([]byte(nil), data...)))
	b.m.strings++
	g.Immutable = true
	g.Linkage = enum.LinkagePrivate
	if !b.open("ptrtoint") {
		return constant.NewUndef(types.I64)
	}
	return b.entry.NewPtrToInt(g, types.I64)
}

func (b *Builder) Return(v compiler.Value) {
	x := b.val(v)
	want := irType(b.f.ret)
	if !x.Type().Equal(want) {
		b.problem("return of %s from function returning %s", x.Type(), want)
		x = constant.NewUndef(want)
	}
	if b.open("ret") {
		b.entry.NewRet(x)
	}
}

func (b *Builder) ReturnVoid() {
	if b.f.ret != compiler.Unit {
		b.problem("ret void from function returning %s", irType(b.f.ret))
	}
	if b.open("ret void") {
		b.entry.NewRet(nil)
	}
}

// Verify reports every structural problem recorded while building.
func (b *Builder) Verify() error {
	problems := b.problems
	if b.entry.Term == nil {
		problems = append(problems, "entry block has no terminator")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("@%s: %s", b.f.fn.Name(), strings.Join(problems, "; "))
}

// Abandon deletes the function from the module.
func (b *Builder) Abandon() {
	delete(b.m.byName, b.f.fn.Name())
	funcs := b.m.mod.Funcs
	for i, f := range funcs {
		if f == b.f.fn {
			b.m.mod.Funcs = append(funcs[:i:i], funcs[i+1:]...)
			break
		}
	}
}
