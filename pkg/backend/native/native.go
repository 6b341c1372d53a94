// Package native implements the compiler backend interface on LLVM and emits
// relocatable object files for the host target.
package native

import (
	"fmt"
	"io"
	"sync"

	"stackbad/pkg/compiler"

	"tinygo.org/x/go-llvm"
)

var (
	initOnce sync.Once
	initErr  error
)

func initTarget() error {
	initOnce.Do(func() {
		if err := llvm.InitializeNativeTarget(); err != nil {
			initErr = err
			return
		}
		initErr = llvm.InitializeNativeAsmPrinter()
	})
	return initErr
}

type funcInfo struct {
	val llvm.Value
	typ llvm.Type
	ret compiler.Type
}

// Module owns the LLVM context, module and builder of one compilation unit.
type Module struct {
	ctx   llvm.Context
	mod   llvm.Module
	b     llvm.Builder
	funcs map[string]funcInfo
}

// New creates a module named name in a fresh LLVM context.
func New(name string) *Module {
	ctx := llvm.NewContext()
	return &Module{
		ctx:   ctx,
		mod:   ctx.NewModule(name),
		b:     ctx.NewBuilder(),
		funcs: make(map[string]funcInfo),
	}
}

func (m *Module) typeOf(t compiler.Type) llvm.Type {
	switch t {
	case compiler.I8:
		return m.ctx.Int8Type()
	case compiler.I16:
		return m.ctx.Int16Type()
	case compiler.I32:
		return m.ctx.Int32Type()
	case compiler.I64:
		return m.ctx.Int64Type()
	default:
		return m.ctx.VoidType()
	}
}

func (m *Module) DeclareFunction(name string, ret compiler.Type, params []compiler.Type, linkage compiler.Linkage) error {
	if _, exists := m.funcs[name]; exists {
		return fmt.Errorf("function %q redeclared", name)
	}
	ptypes := make([]llvm.Type, len(params))
	for i, p := range params {
		if p == compiler.Unit {
			return fmt.Errorf("parameter %d of %q has type unit", i, name)
		}
		ptypes[i] = m.typeOf(p)
	}
	ftyp := llvm.FunctionType(m.typeOf(ret), ptypes, false)
	fn := llvm.AddFunction(m.mod, name, ftyp)
	switch linkage {
	case compiler.Internal:
		fn.SetLinkage(llvm.InternalLinkage)
	default:
		fn.SetLinkage(llvm.ExternalLinkage)
	}
	m.funcs[name] = funcInfo{val: fn, typ: ftyp, ret: ret}
	return nil
}

func (m *Module) BeginFunction(name string) (compiler.FunctionBuilder, error) {
	info, ok := m.funcs[name]
	if !ok {
		return nil, fmt.Errorf("function %q is not declared", name)
	}
	if info.val.BasicBlocksCount() > 0 {
		return nil, fmt.Errorf("function %q already has a body", name)
	}
	entry := m.ctx.AddBasicBlock(info.val, "entry")
	m.b.SetInsertPointAtEnd(entry)
	return &Builder{m: m, fn: info}, nil
}

// IR returns the textual LLVM IR of the module.
func (m *Module) IR() string {
	return m.mod.String()
}

// Emit compiles the module for the host's default target triple at the
// default optimisation level and writes the object file to w.
func (m *Module) Emit(w io.Writer) error {
	if err := initTarget(); err != nil {
		return fmt.Errorf("initialize native target: %w", err)
	}
	triple := llvm.DefaultTargetTriple()
	target, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return fmt.Errorf("target %s: %w", triple, err)
	}
	// An empty CPU and feature string selects the generic CPU for triple.
	tm := target.CreateTargetMachine(triple, "", "", llvm.CodeGenLevelDefault, llvm.RelocDefault, llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	m.mod.SetTarget(triple)
	m.mod.SetDataLayout(td.String())
	td.Dispose()

	if err := llvm.VerifyModule(m.mod, llvm.ReturnStatusAction); err != nil {
		return fmt.Errorf("module verification: %w", err)
	}

	buf, err := tm.EmitToMemoryBuffer(m.mod, llvm.ObjectFile)
	if err != nil {
		return fmt.Errorf("emit object: %w", err)
	}
	defer buf.Dispose()
	_, err = w.Write(buf.Bytes())
	return err
}

func (m *Module) Dispose() {
	m.b.Dispose()
	m.mod.Dispose()
	m.ctx.Dispose()
}

// Builder lowers instructions into one function's entry block.
type Builder struct {
	m  *Module
	fn funcInfo
}

func value(v compiler.Value) llvm.Value {
	return v.(llvm.Value)
}

func (b *Builder) Param(i int) compiler.Value {
	return b.fn.val.Param(i)
}

func (b *Builder) Alloca(ty compiler.Type) compiler.Value {
	return b.m.b.CreateAlloca(b.m.typeOf(ty), "")
}

func (b *Builder) Store(slot compiler.Value, v compiler.Value) {
	b.m.b.CreateStore(value(v), value(slot))
}

func (b *Builder) Load(ty compiler.Type, slot compiler.Value) compiler.Value {
	return b.m.b.CreateLoad(b.m.typeOf(ty), value(slot), "")
}

func (b *Builder) Binary(op compiler.BinaryOp, x, y compiler.Value) compiler.Value {
	l, r := value(x), value(y)
	switch op {
	case compiler.Add:
		return b.m.b.CreateAdd(l, r, "")
	case compiler.Sub:
		return b.m.b.CreateSub(l, r, "")
	case compiler.Mult:
		return b.m.b.CreateMul(l, r, "")
	case compiler.Div:
		return b.m.b.CreateSDiv(l, r, "")
	case compiler.Lsh:
		return b.m.b.CreateShl(l, r, "")
	default:
		return b.m.b.CreateAShr(l, r, "")
	}
}

func (b *Builder) Not(v compiler.Value) compiler.Value {
	return b.m.b.CreateNot(value(v), "")
}

func (b *Builder) LoadAddress(ty compiler.Type, addr compiler.Value) compiler.Value {
	elem := b.m.typeOf(ty)
	ptr := b.m.b.CreateIntToPtr(value(addr), llvm.PointerType(elem, 0), "")
	return b.m.b.CreateLoad(elem, ptr, "")
}

func (b *Builder) Call(name string, args []compiler.Value) compiler.Value {
	callee := b.m.funcs[name]
	vals := make([]llvm.Value, len(args))
	for i, a := range args {
		vals[i] = value(a)
	}
	call := b.m.b.CreateCall(callee.typ, callee.val, vals, "")
	if callee.ret == compiler.Unit {
		return nil
	}
	return call
}

func (b *Builder) Const(ty compiler.Type, v uint64) compiler.Value {
	return llvm.ConstInt(b.m.typeOf(ty), v, false)
}

func (b *Builder) GlobalData(data []byte) compiler.Value {
	init := b.m.ctx.ConstString(string(data), false)
	g := llvm.AddGlobal(b.m.mod, init.Type(), ".str")
	g.SetInitializer(init)
	g.SetGlobalConstant(true)
	g.SetLinkage(llvm.PrivateLinkage)
	return b.m.b.CreatePtrToInt(g, b.m.ctx.Int64Type(), "")
}

func (b *Builder) Return(v compiler.Value) {
	b.m.b.CreateRet(value(v))
}

func (b *Builder) ReturnVoid() {
	b.m.b.CreateRetVoid()
}

func (b *Builder) Verify() error {
	return llvm.VerifyFunction(b.fn.val, llvm.ReturnStatusAction)
}

// Abandon deletes the function from the module.
func (b *Builder) Abandon() {
	delete(b.m.funcs, b.fn.val.Name())
	b.fn.val.EraseFromParentAsFunction()
}
