package compiler_test

import (
	"bytes"
	"strings"
	"testing"

	"stackbad/pkg/backend/irtext"
	. "stackbad/pkg/compiler"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// returnSeven is a complete program: an external i32 function f that
// returns 7.
const returnSeven = `stack bad # header
stack baaad # decl ext i32 f
ssssssstttttttack bad # "f"
staack bad # def f
ssssssstttttttack bad # "f"
stack baaaaaaaad # ret
staaaaaaaaccck baaaaaaad # const i32 7
`

func source(t *testing.T, items ...Item) string {
	t.Helper()
	records, err := EncodeItems(items)
	require.NoError(t, err)
	return Render(records)
}

func compileIR(t *testing.T, src string, opts ...Option) (string, error) {
	t.Helper()
	m := irtext.New("prog")
	defer m.Dispose()
	var buf bytes.Buffer
	opts = append(opts, WithLogger(zaptest.NewLogger(t)))
	_, err := Compile(src, m, &buf, opts...)
	if err != nil {
		return m.String(), err
	}
	return buf.String(), nil
}

// irLines splits IR text into its non-blank lines with indentation removed.
func irLines(ir string) []string {
	var lines []string
	for _, l := range strings.Split(ir, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// assertIR checks that ir has exactly as many lines as want and that each
// line starts with the matching entry.
func assertIR(t *testing.T, ir string, want ...string) {
	t.Helper()
	got := irLines(ir)
	if !assert.Len(t, got, len(want), "IR:\n%s", ir) {
		return
	}
	for i := range want {
		assert.True(t, strings.HasPrefix(got[i], want[i]), "line %d: got %q, want prefix %q", i+1, got[i], want[i])
	}
}

func TestCompileReturnConstant(t *testing.T) {
	ir, err := compileIR(t, returnSeven)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ir, "; ModuleID = 'prog'\n"))
	assertIR(t, ir,
		"; ModuleID = 'prog'",
		"define i32 @f() {",
		"entry:",
		"ret i32 7",
		"}",
	)
}

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		items    []Item
		expected []string
	}{
		{
			name: "Params And Locals",
			items: []Item{
				&FunctionDecl{Name: "add", ReturnType: I32, Params: []Type{I32, I32}},
				&FunctionDef{Name: "add", Locals: []Type{I32}, Body: &BlockExpr{Exprs: []Expr{
					&AssignmentExpr{Local: 2, Value: &BinaryExpr{Op: Add, Left: &LocalExpr{Local: 0}, Right: &LocalExpr{Local: 1}}},
					&ReturnExpr{Value: &LocalExpr{Local: 2}},
				}}},
			},
			expected: []string{
				"define i32 @add(i32 %0, i32 %1) {",
				"entry:",
				"%2 = alloca i32",
				"store i32 %0, i32* %2",
				"%3 = alloca i32",
				"store i32 %1, i32* %3",
				"%4 = alloca i32",
				"%5 = load i32, i32* %2",
				"%6 = load i32, i32* %3",
				"%7 = add i32 %5, %6",
				"store i32 %7, i32* %4",
				"%8 = load i32, i32* %4",
				"ret i32 %8",
				"}",
			},
		},
		{
			name: "String Literal Dereference",
			items: []Item{
				&FunctionDecl{Name: "s", ReturnType: I32},
				&FunctionDef{Name: "s", Body: &ReturnExpr{Value: &UnaryExpr{Op: Deref, Operand: &StringLitExpr{Value: "hi"}}}},
			},
			expected: []string{
				`@.str.0 = private constant [2 x i8] c"hi"`,
				"define i32 @s() {",
				"entry:",
				"%0 = ptrtoint [2 x i8]* @.str.0 to i64",
				"%1 = inttoptr i64 %0 to i32*",
				"%2 = load i32, i32* %1",
				"ret i32 %2",
				"}",
			},
		},
		{
			name: "Void Callee Yields Placeholder",
			items: []Item{
				&FunctionDecl{Name: "log", ReturnType: Unit, Params: []Type{I64}, Linkage: Internal},
				&FunctionDecl{Name: "main", ReturnType: I64},
				&FunctionDef{Name: "log", Body: &ReturnExpr{Value: &ConstantExpr{Type: I64}}},
				&FunctionDef{Name: "main", Body: &ReturnExpr{Value: &InvokeExpr{Name: "log", Args: []Expr{
					&ConstantExpr{Type: I64, Value: 5},
				}}}},
			},
			expected: []string{
				"define internal void @log(i64 %0) {",
				"entry:",
				"%1 = alloca i64",
				"store i64 %0, i64* %1",
				"ret void",
				"}",
				"define i64 @main() {",
				"entry:",
				"call void @log(i64 5)",
				"ret i64 0",
				"}",
			},
		},
		{
			name: "Declaration Only And Not",
			items: []Item{
				&FunctionDecl{Name: "ext", ReturnType: I8, Params: []Type{I16}},
				&FunctionDecl{Name: "inv", ReturnType: I8},
				&FunctionDef{Name: "inv", Body: &ReturnExpr{Value: &UnaryExpr{Op: Not, Operand: &InvokeExpr{
					Name: "ext", Args: []Expr{&ConstantExpr{Type: I16, Value: 70000}},
				}}}},
			},
			expected: []string{
				"declare i8 @ext(i16",
				"define i8 @inv() {",
				"entry:",
				"%0 = call i8 @ext(i16 4464)",
				"%1 = xor i8 %0, -1",
				"ret i8 %1",
				"}",
			},
		},
		{
			name: "Assignment Of Matching Width",
			items: []Item{
				&FunctionDecl{Name: "narrow", ReturnType: I8},
				&FunctionDef{Name: "narrow", Locals: []Type{I8}, Body: &BlockExpr{Exprs: []Expr{
					&AssignmentExpr{Local: 0, Value: &ConstantExpr{Type: I8, Value: 5}},
					&ReturnExpr{Value: &LocalExpr{Local: 0}},
				}}},
			},
			expected: []string{
				"define i8 @narrow() {",
				"entry:",
				"%0 = alloca i8",
				"store i8 5, i8* %0",
				"%1 = load i8, i8* %0",
				"ret i8 %1",
				"}",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := irtext.New("prog")
			require.NoError(t, Generate(tt.items, m, zaptest.NewLogger(t)))
			assertIR(t, m.String(), append([]string{"; ModuleID = 'prog'"}, tt.expected...)...)
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		msg   string
	}{
		{
			name: "Missing Return",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I32},
				&FunctionDef{Name: "f", Body: &ConstantExpr{Type: I32, Value: 1}},
			},
			msg: "no terminator",
		},
		{
			name: "Return Width Mismatch",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I32},
				&FunctionDef{Name: "f", Body: &ReturnExpr{Value: &ConstantExpr{Type: I64, Value: 1}}},
			},
			msg: "return of i64",
		},
		{
			name: "Block Placeholder Returned From i32 Function",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I32},
				&FunctionDef{Name: "f", Body: &ReturnExpr{Value: &BlockExpr{}}},
			},
			msg: "return of i64",
		},
		{
			name: "Instruction After Return",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I8, Params: []Type{I8}},
				&FunctionDef{Name: "f", Body: &BlockExpr{Exprs: []Expr{
					&ReturnExpr{Value: &LocalExpr{Local: 0}},
					&AssignmentExpr{Local: 0, Value: &ConstantExpr{Type: I8}},
				}}},
			},
			msg: "instruction after terminator",
		},
		{
			name: "Mismatched Binary Operands",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I8},
				&FunctionDef{Name: "f", Body: &ReturnExpr{Value: &BinaryExpr{
					Op: Sub, Left: &ConstantExpr{Type: I8}, Right: &ConstantExpr{Type: I16},
				}}},
			},
			msg: "mismatched types",
		},
		{
			name: "Unit Parameter",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I8, Params: []Type{Unit}},
			},
			msg: "parameter 0 has type unit",
		},
		{
			name: "Unit Local",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: Unit},
				&FunctionDef{Name: "f", Locals: []Type{Unit}, Body: &BlockExpr{}},
			},
			msg: "local 0 has type unit",
		},
		{
			name: "Wide Constant Into Narrow Slot",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I32},
				&FunctionDef{Name: "f", Locals: []Type{I8}, Body: &BlockExpr{Exprs: []Expr{
					&AssignmentExpr{Local: 0, Value: &ConstantExpr{Type: I64, Value: 5}},
					&ReturnExpr{Value: &ConstantExpr{Type: I32, Value: 1}},
				}}},
			},
			msg: `function "f": assignment of i64 value to slot 0 of type i8`,
		},
		{
			name: "Block Placeholder Into Narrow Slot",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I32},
				&FunctionDef{Name: "f", Locals: []Type{I8}, Body: &BlockExpr{Exprs: []Expr{
					&AssignmentExpr{Local: 0, Value: &BlockExpr{}},
					&ReturnExpr{Value: &ConstantExpr{Type: I32, Value: 1}},
				}}},
			},
			msg: "assignment of i64 value to slot 0 of type i8",
		},
		{
			name: "Dereference Into Wide Parameter Slot",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I64, Params: []Type{I64}},
				&FunctionDef{Name: "f", Body: &BlockExpr{Exprs: []Expr{
					&AssignmentExpr{Local: 0, Value: &UnaryExpr{Op: Deref, Operand: &LocalExpr{Local: 0}}},
					&ReturnExpr{Value: &LocalExpr{Local: 0}},
				}}},
			},
			msg: "assignment of i32 value to slot 0 of type i64",
		},
		{
			name: "Internal Declaration Without Body",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I32},
				&FunctionDecl{Name: "g", ReturnType: I32, Linkage: Internal},
				&FunctionDef{Name: "f", Body: &ReturnExpr{Value: &ConstantExpr{Type: I32, Value: 1}}},
			},
			msg: `function "g": internal function has no definition`,
		},
		{
			name: "Slot Out Of Range",
			items: []Item{
				&FunctionDecl{Name: "f", ReturnType: I8},
				&FunctionDef{Name: "f", Body: &ReturnExpr{Value: &LocalExpr{Local: 3}}},
			},
			msg: "slot 3 out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := irtext.New("prog")
			err := Generate(tt.items, m, zaptest.NewLogger(t))
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, KindCodegen, e.Kind)
			assert.Equal(t, Pos{}, e.Pos)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestFailedFunctionIsRemoved(t *testing.T) {
	src := source(t,
		&FunctionDecl{Name: "good", ReturnType: I32},
		&FunctionDecl{Name: "bad", ReturnType: I32},
		&FunctionDecl{Name: "later", ReturnType: I32},
		&FunctionDef{Name: "good", Body: &ReturnExpr{Value: &ConstantExpr{Type: I32, Value: 1}}},
		&FunctionDef{Name: "bad", Body: &ConstantExpr{Type: I32, Value: 2}},
		&FunctionDef{Name: "later", Body: &ReturnExpr{Value: &ConstantExpr{Type: I32, Value: 3}}},
	)

	ir, err := compileIR(t, src)
	require.True(t, IsKind(err, KindCodegen), "got %v", err)
	assert.Contains(t, ir, "define i32 @good()")
	assert.NotContains(t, ir, "@bad")
	// Generation stops at the first failure.
	assert.Contains(t, ir, "declare i32 @later()")
}

func TestCompileFrontEndErrorsEmitNothing(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind Kind
		pos  Pos
	}{
		{"Lexical", "stack bad\nstack bed\n", KindLexical, Pos{2, 8}},
		{"Odd Word Count", "stack bad\nstack\n", KindFormat, Pos{2, 1}},
		{"Missing Header", "", KindFormat, Pos{1, 1}},
		{"Non Zero Header", "staack bad\n", KindFormat, Pos{1, 1}},
		{"Syntax", strings.Replace(returnSeven, "staaaaaaaaccck", "stttaaaaaaaaccck", 1), KindSyntax, Pos{7, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := irtext.New("prog")
			var buf bytes.Buffer
			_, err := Compile(tt.src, m, &buf)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.pos, e.Pos)
			assert.Zero(t, buf.Len())
		})
	}
}

func TestParseSourceIsDeterministic(t *testing.T) {
	src := source(t,
		&FunctionDecl{Name: "helper", ReturnType: I64, Params: []Type{I64}, Linkage: Internal},
		&FunctionDecl{Name: "main", ReturnType: I64},
		&FunctionDef{Name: "helper", Body: &ReturnExpr{Value: &BinaryExpr{
			Op: Mult, Left: &LocalExpr{Local: 0}, Right: &ConstantExpr{Type: I64, Value: 3},
		}}},
		&FunctionDef{Name: "main", Locals: []Type{I64}, Body: &BlockExpr{Exprs: []Expr{
			&AssignmentExpr{Local: 0, Value: &InvokeExpr{Name: "helper", Args: []Expr{&ConstantExpr{Type: I64, Value: 14}}}},
			&ReturnExpr{Value: &LocalExpr{Local: 0}},
		}}},
	)

	first, err := ParseSource(src)
	require.NoError(t, err)
	second, err := ParseSource(src)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("ParseSource is not deterministic (-first +second):\n%s", diff)
	}

	a, err := compileIR(t, src)
	require.NoError(t, err)
	b, err := compileIR(t, src)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCompileWithPrune(t *testing.T) {
	src := source(t,
		&FunctionDecl{Name: "dead", ReturnType: I32, Linkage: Internal},
		&FunctionDecl{Name: "f", ReturnType: I32},
		&FunctionDef{Name: "dead", Body: &ReturnExpr{Value: &ConstantExpr{Type: I32}}},
		&FunctionDef{Name: "f", Body: &ReturnExpr{Value: &ConstantExpr{Type: I32, Value: 7}}},
	)

	full, err := compileIR(t, src)
	require.NoError(t, err)
	assert.Contains(t, full, "@dead")

	pruned, err := compileIR(t, src, WithPrune(true))
	require.NoError(t, err)
	assert.NotContains(t, pruned, "@dead")
	assert.Contains(t, pruned, "ret i32 7")
}
