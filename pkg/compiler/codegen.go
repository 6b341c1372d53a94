package compiler

import (
	"fmt"

	"go.uber.org/zap"
)

// session lowers one compilation unit onto one Backend.
type session struct {
	backend Backend
	log     *zap.Logger
	decls   map[string]*FunctionDecl
	defined map[string]bool
	order   []string // declared names in source order
}

// funcState is the state of the function definition being lowered. It lives
// only for the duration of one genFunction call.
type funcState struct {
	name  string
	fb    FunctionBuilder
	decls map[string]*FunctionDecl
	slots []slot
	ret   Type
}

type slot struct {
	ty   Type
	addr Value
}

// placeholderType is the type of the value yielded by nodes that exist only
// for their effect (blocks, assignments, returns).
const placeholderType = I64

// Generate lowers items onto b: every FunctionDecl becomes a function
// signature and every FunctionDef a function body. It does not emit the
// object; see Compile. An Internal function must be given a body.
func Generate(items []Item, b Backend, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	s := &session{backend: b, log: log, decls: make(map[string]*FunctionDecl), defined: make(map[string]bool)}
	for _, item := range items {
		var err error
		switch it := item.(type) {
		case *FunctionDecl:
			err = s.declare(it)
		case *FunctionDef:
			err = s.genFunction(it)
		default:
			err = fmt.Errorf("unknown item type %T", item)
		}
		if err != nil {
			return err
		}
	}
	for _, name := range s.order {
		if s.decls[name].Linkage == Internal && !s.defined[name] {
			return codegenError(name, "internal function has no definition")
		}
	}
	return nil
}

func codegenError(name string, format string, args ...any) *Error {
	return &Error{Kind: KindCodegen, Msg: fmt.Sprintf("function %q: ", name) + fmt.Sprintf(format, args...)}
}

func (s *session) declare(decl *FunctionDecl) error {
	for i, p := range decl.Params {
		if p == Unit {
			return codegenError(decl.Name, "parameter %d has type unit", i)
		}
	}
	if err := s.backend.DeclareFunction(decl.Name, decl.ReturnType, decl.Params, decl.Linkage); err != nil {
		return &Error{Kind: KindCodegen, Msg: fmt.Sprintf("declare %q", decl.Name), Err: err}
	}
	s.decls[decl.Name] = decl
	s.order = append(s.order, decl.Name)
	s.log.Debug("declared function",
		zap.String("name", decl.Name),
		zap.Stringer("linkage", decl.Linkage),
		zap.Int("params", len(decl.Params)))
	return nil
}

func (s *session) genFunction(def *FunctionDef) error {
	decl, ok := s.decls[def.Name]
	if !ok {
		return codegenError(def.Name, "definition without declaration")
	}
	for i, l := range def.Locals {
		if l == Unit {
			return codegenError(def.Name, "local %d has type unit", i)
		}
	}

	fb, err := s.backend.BeginFunction(def.Name)
	if err != nil {
		return &Error{Kind: KindCodegen, Msg: fmt.Sprintf("begin %q", def.Name), Err: err}
	}
	fs := &funcState{name: def.Name, fb: fb, decls: s.decls, ret: decl.ReturnType}

	for i, p := range decl.Params {
		addr := fb.Alloca(p)
		fb.Store(addr, fb.Param(i))
		fs.slots = append(fs.slots, slot{ty: p, addr: addr})
	}
	for _, l := range def.Locals {
		fs.slots = append(fs.slots, slot{ty: l, addr: fb.Alloca(l)})
	}

	if _, _, err := fs.genExpr(def.Body); err != nil {
		fb.Abandon()
		return err
	}

	if err := fb.Verify(); err != nil {
		fb.Abandon()
		return &Error{Kind: KindCodegen, Msg: fmt.Sprintf("function %q failed verification", def.Name), Err: err}
	}
	s.defined[def.Name] = true
	s.log.Debug("generated function", zap.String("name", def.Name), zap.Int("slots", len(fs.slots)))
	return nil
}

func (fs *funcState) placeholder() (Value, Type, error) {
	return fs.fb.Const(placeholderType, 0), placeholderType, nil
}

func (fs *funcState) slot(idx uint32) (slot, error) {
	if uint64(idx) >= uint64(len(fs.slots)) {
		return slot{}, &Error{Kind: KindCodegen, Msg: fmt.Sprintf("slot %d out of range (%d slots)", idx, len(fs.slots))}
	}
	return fs.slots[idx], nil
}

// genExpr lowers e and returns its value with its static type. Every node
// yields a value so the lowering stays total; effect-only nodes yield a zero
// placeholder.
func (fs *funcState) genExpr(e Expr) (Value, Type, error) {
	switch n := e.(type) {
	case *BinaryExpr:
		a, ty, err := fs.genExpr(n.Left)
		if err != nil {
			return nil, 0, err
		}
		b, _, err := fs.genExpr(n.Right)
		if err != nil {
			return nil, 0, err
		}
		return fs.fb.Binary(n.Op, a, b), ty, nil

	case *UnaryExpr:
		v, ty, err := fs.genExpr(n.Operand)
		if err != nil {
			return nil, 0, err
		}
		switch n.Op {
		case Deref:
			// Dereference is always a 32-bit load, whatever the pointee.
			return fs.fb.LoadAddress(I32, v), I32, nil
		case Not:
			return fs.fb.Not(v), ty, nil
		}
		return nil, 0, &Error{Kind: KindCodegen, Msg: fmt.Sprintf("unknown unary operator %s", n.Op)}

	case *InvokeExpr:
		args := make([]Value, 0, len(n.Args))
		for _, a := range n.Args {
			v, _, err := fs.genExpr(a)
			if err != nil {
				return nil, 0, err
			}
			args = append(args, v)
		}
		if v := fs.fb.Call(n.Name, args); v != nil {
			ty := placeholderType
			if d, ok := fs.decls[n.Name]; ok {
				ty = d.ReturnType
			}
			return v, ty, nil
		}
		return fs.placeholder()

	case *BlockExpr:
		for _, child := range n.Exprs {
			if _, _, err := fs.genExpr(child); err != nil {
				return nil, 0, err
			}
		}
		return fs.placeholder()

	case *AssignmentExpr:
		sl, err := fs.slot(n.Local)
		if err != nil {
			return nil, 0, err
		}
		v, ty, err := fs.genExpr(n.Value)
		if err != nil {
			return nil, 0, err
		}
		if ty != sl.ty {
			return nil, 0, codegenError(fs.name, "assignment of %s value to slot %d of type %s", ty, n.Local, sl.ty)
		}
		fs.fb.Store(sl.addr, v)
		return fs.placeholder()

	case *LocalExpr:
		sl, err := fs.slot(n.Local)
		if err != nil {
			return nil, 0, err
		}
		return fs.fb.Load(sl.ty, sl.addr), sl.ty, nil

	case *ConstantExpr:
		return fs.fb.Const(n.Type, uint64(n.Value)), n.Type, nil

	case *StringLitExpr:
		return fs.fb.GlobalData([]byte(n.Value)), I64, nil

	case *ReturnExpr:
		v, _, err := fs.genExpr(n.Value)
		if err != nil {
			return nil, 0, err
		}
		if fs.ret == Unit {
			fs.fb.ReturnVoid()
		} else {
			fs.fb.Return(v)
		}
		return fs.placeholder()
	}
	return nil, 0, &Error{Kind: KindCodegen, Msg: fmt.Sprintf("unknown expression type %T", e)}
}
