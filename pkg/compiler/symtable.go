package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolTable maps declared function names to their signatures and tracks
// the slot scope of the function definition currently being parsed.
// Declarations are only ever added; an existing entry is never replaced.
type SymbolTable struct {
	funcs   map[string]*FunctionDecl
	defined map[string]bool

	// Slot scope of the active definition; nil outside a definition.
	slots []Type
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		funcs:   make(map[string]*FunctionDecl),
		defined: make(map[string]bool),
	}
}

// Declare records decl. It reports false if the name is already declared.
func (s *SymbolTable) Declare(decl *FunctionDecl) bool {
	if _, exists := s.funcs[decl.Name]; exists {
		return false
	}
	s.funcs[decl.Name] = decl
	return true
}

// Lookup returns the declaration for name and whether it was found.
func (s *SymbolTable) Lookup(name string) (*FunctionDecl, bool) {
	decl, ok := s.funcs[name]
	return decl, ok
}

// EnterFunction opens the slot scope of a definition of decl: its
// parameters followed by locals. It reports false if decl already has a body.
func (s *SymbolTable) EnterFunction(decl *FunctionDecl, locals []Type) bool {
	if s.defined[decl.Name] {
		return false
	}
	s.defined[decl.Name] = true
	s.slots = make([]Type, 0, len(decl.Params)+len(locals))
	s.slots = append(s.slots, decl.Params...)
	s.slots = append(s.slots, locals...)
	return true
}

func (s *SymbolTable) ExitFunction() {
	s.slots = nil
}

// Slot returns the type of slot idx in the active definition.
func (s *SymbolTable) Slot(idx uint32) (Type, bool) {
	if s.slots == nil || uint64(idx) >= uint64(len(s.slots)) {
		return 0, false
	}
	return s.slots[idx], true
}

// SlotCount returns the number of slots in the active definition.
func (s *SymbolTable) SlotCount() int {
	return len(s.slots)
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	if len(s.funcs) == 0 {
		sb.WriteString("Functions: (empty)\n")
		return sb.String()
	}
	sb.WriteString("Functions:\n")
	names := make([]string, 0, len(s.funcs))
	for name := range s.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		decl := s.funcs[name]
		fmt.Fprintf(&sb, "  %-20s  %s %s %v (defined: %t)\n", name, decl.Linkage, decl.ReturnType, decl.Params, s.defined[name])
	}
	return sb.String()
}
