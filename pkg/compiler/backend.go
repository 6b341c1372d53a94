package compiler

import "io"

// Value is an opaque handle to a value produced by a FunctionBuilder. A nil
// Value stands for "no value" (the result of calling a Unit function).
type Value any

// Backend is the native code generation library driven by Generate. One
// Backend serves exactly one compilation unit.
type Backend interface {
	// DeclareFunction adds a function signature to the module. A Unit
	// return type declares a function without a result; Unit is not valid
	// for parameters.
	DeclareFunction(name string, ret Type, params []Type, linkage Linkage) error

	// BeginFunction positions a builder at the entry block of the declared
	// function name.
	BeginFunction(name string) (FunctionBuilder, error)

	// Emit writes the module as an object file for the host target.
	Emit(w io.Writer) error

	// Dispose releases all backend resources.
	Dispose()
}

// FunctionBuilder appends instructions to the entry block of one function.
// Instructions are emitted in call order; there is no control flow.
type FunctionBuilder interface {
	// Param returns the incoming value of parameter i.
	Param(i int) Value

	// Alloca reserves a stack slot of type ty and returns its address.
	Alloca(ty Type) Value
	Store(slot Value, v Value)
	Load(ty Type, slot Value) Value

	Binary(op BinaryOp, a, b Value) Value
	Not(v Value) Value

	// LoadAddress reinterprets addr as a pointer in the default address
	// space and loads a value of type ty through it.
	LoadAddress(ty Type, addr Value) Value

	// Call calls the declared function name. It returns nil when the callee
	// has a Unit return type.
	Call(name string, args []Value) Value

	Const(ty Type, v uint64) Value

	// GlobalData declares constant byte data and returns its address as an
	// i64 value.
	GlobalData(data []byte) Value

	Return(v Value)
	ReturnVoid()

	// Verify checks the structural validity of the function body.
	Verify() error

	// Abandon deletes the function from the module.
	Abandon()
}
