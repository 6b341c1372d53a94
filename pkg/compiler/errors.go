package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a compilation error by the stage that detected it.
type Kind int

const (
	KindLexical Kind = iota // illegal character or malformed word
	KindFormat              // word pairing or header violation
	KindSyntax              // unrecognized record pattern or bad reference
	KindCodegen             // backend rejected a generated function
)

func (k Kind) String() string {
	switch k {
	case KindLexical:
		return "lexical"
	case KindFormat:
		return "format"
	case KindSyntax:
		return "syntax"
	case KindCodegen:
		return "codegen"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// Error is returned by every stage of the pipeline. The first error aborts
// the compilation.
type Error struct {
	Kind Kind
	Pos  Pos
	Msg  string
	Err  error // underlying backend error, if any
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	if e.Pos.Line < 1 {
		return msg
	}
	return e.Pos.String() + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func errorf(kind Kind, pos Pos, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// IsKind reports whether err is a compilation *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Snippet renders err against src with the offending line and a caret under
// its column:
//
//	--> prog.sb:3:7
//	stack bad sstack
//	      ^ syntax error: ...
//
// Errors that carry no position are rendered as-is.
func Snippet(err error, name string, src string, color bool) string {
	var e *Error
	if !errors.As(err, &e) || e.Pos.Line < 1 {
		return err.Error()
	}

	lines := strings.Split(src, "\n")
	line := ""
	if e.Pos.Line <= len(lines) {
		line = strings.TrimRight(lines[e.Pos.Line-1], "\r")
	}
	col := e.Pos.Col
	if col < 1 {
		col = 1
	}

	var sb strings.Builder
	if color {
		sb.WriteString("\033[1;34m")
	}
	fmt.Fprintf(&sb, "--> %s:%d:%d", name, e.Pos.Line, e.Pos.Col)
	if color {
		sb.WriteString("\033[0m")
	}
	sb.WriteString("\n")
	sb.WriteString(line)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(" ", col-1))
	if color {
		sb.WriteString("\033[1;31m")
	}
	sb.WriteString("^ ")
	fmt.Fprintf(&sb, "%s error: %s", e.Kind, e.Msg)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if color {
		sb.WriteString("\033[0m")
	}
	return sb.String()
}
