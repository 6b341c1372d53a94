package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolTable(t *testing.T) {
	s := NewSymbolTable()
	add := &FunctionDecl{Name: "add", ReturnType: I32, Params: []Type{I32, I32}}
	require.True(t, s.Declare(add))
	assert.False(t, s.Declare(&FunctionDecl{Name: "add", ReturnType: I64}))

	got, ok := s.Lookup("add")
	require.True(t, ok)
	assert.Same(t, add, got)
	_, ok = s.Lookup("sub")
	assert.False(t, ok)

	_, ok = s.Slot(0)
	assert.False(t, ok, "no slots outside a definition")

	require.True(t, s.EnterFunction(add, []Type{I8}))
	assert.Equal(t, 3, s.SlotCount())
	for idx, want := range []Type{I32, I32, I8} {
		ty, ok := s.Slot(uint32(idx))
		require.True(t, ok)
		assert.Equal(t, want, ty)
	}
	_, ok = s.Slot(3)
	assert.False(t, ok)
	s.ExitFunction()

	assert.Equal(t, 0, s.SlotCount())
	assert.False(t, s.EnterFunction(add, nil), "second definition")
}

func TestSymbolTableString(t *testing.T) {
	s := NewSymbolTable()
	assert.Equal(t, "Functions: (empty)\n", s.String())

	s.Declare(&FunctionDecl{Name: "zeta", ReturnType: Unit, Linkage: Internal})
	s.Declare(&FunctionDecl{Name: "alpha", ReturnType: I64, Params: []Type{I8}})
	out := s.String()
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "zeta"))
	assert.Contains(t, out, "internal unit []")
}

