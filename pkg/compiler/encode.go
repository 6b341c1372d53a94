package compiler

import (
	"fmt"
	"strings"
)

// Record constructors: the inverse of the patterns accepted by the Parser.

func HeaderRecord() Record { return Record{} }

func DeclRecord(l Linkage, ret Type, nparams int) Record {
	var r Record
	r.Fields[fieldLink] = uint32(l)
	r.Fields[fieldTag] = uint32(ret)
	r.Fields[fieldCount] = uint32(nparams)
	return r
}

func DefRecord(nlocals int) Record {
	var r Record
	r.Fields[fieldArg] = 1
	r.Fields[fieldTag] = uint32(nlocals)
	return r
}

func TypeRecord(t Type) Record { return tagged(uint32(t)) }

func BinaryRecord(op BinaryOp) Record {
	r := tagged(tagBinary)
	r.Fields[fieldOp] = uint32(op)
	return r
}

func UnaryRecord(op UnaryOp) Record {
	r := tagged(tagUnary)
	r.Fields[fieldOp] = uint32(op)
	return r
}

func InvokeRecord() Record   { return tagged(tagInvoke) }
func BlockRecord() Record    { return tagged(tagBlock) }
func ReturnRecord() Record   { return tagged(tagReturn) }
func StringRecord() Record   { return tagged(tagString) }
func BlockEndRecord() Record { return Record{Fields: [RecordLen]uint32{fieldBlock: 1}} }

func AssignRecord(idx uint32) Record {
	r := tagged(tagAssign)
	r.Fields[fieldArg] = idx
	return r
}

func LocalRecord(idx uint32) Record {
	r := tagged(tagLocal)
	r.Fields[fieldArg] = idx
	return r
}

func ConstRecord(t Type, v uint32) Record {
	r := tagged(tagConst)
	r.Fields[fieldArg] = v
	r.Fields[fieldType] = uint32(t)
	return r
}

func tagged(tag uint32) Record {
	var r Record
	r.Fields[fieldTag] = tag
	return r
}

// EncodeItems renders items as the record stream the Parser accepts,
// including the header record. Slot types are not needed for encoding, so
// EncodeItems does not check references.
func EncodeItems(items []Item) ([]Record, error) {
	records := []Record{HeaderRecord()}
	emitName := func(name string) error {
		packed, err := EncodeName(name)
		if err != nil {
			return err
		}
		records = append(records, packed...)
		return nil
	}

	var encodeExpr func(e Expr) error
	encodeExpr = func(e Expr) error {
		switch n := e.(type) {
		case *BinaryExpr:
			records = append(records, BinaryRecord(n.Op))
			if err := encodeExpr(n.Left); err != nil {
				return err
			}
			return encodeExpr(n.Right)
		case *UnaryExpr:
			records = append(records, UnaryRecord(n.Op))
			return encodeExpr(n.Operand)
		case *InvokeExpr:
			records = append(records, InvokeRecord())
			if err := emitName(n.Name); err != nil {
				return err
			}
			for _, a := range n.Args {
				if err := encodeExpr(a); err != nil {
					return err
				}
			}
			return nil
		case *BlockExpr:
			records = append(records, BlockRecord())
			for _, child := range n.Exprs {
				if err := encodeExpr(child); err != nil {
					return err
				}
			}
			records = append(records, BlockEndRecord())
			return nil
		case *AssignmentExpr:
			records = append(records, AssignRecord(n.Local))
			return encodeExpr(n.Value)
		case *LocalExpr:
			records = append(records, LocalRecord(n.Local))
			return nil
		case *ConstantExpr:
			records = append(records, ConstRecord(n.Type, n.Value))
			return nil
		case *StringLitExpr:
			records = append(records, StringRecord())
			return emitName(n.Value)
		case *ReturnExpr:
			records = append(records, ReturnRecord())
			return encodeExpr(n.Value)
		}
		return fmt.Errorf("cannot encode expression %T", e)
	}

	for _, item := range items {
		switch it := item.(type) {
		case *FunctionDecl:
			records = append(records, DeclRecord(it.Linkage, it.ReturnType, len(it.Params)))
			if err := emitName(it.Name); err != nil {
				return nil, err
			}
			for _, p := range it.Params {
				records = append(records, TypeRecord(p))
			}
		case *FunctionDef:
			records = append(records, DefRecord(len(it.Locals)))
			if err := emitName(it.Name); err != nil {
				return nil, err
			}
			for _, l := range it.Locals {
				records = append(records, TypeRecord(l))
			}
			if err := encodeExpr(it.Body); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("cannot encode item %T", item)
		}
	}
	return records, nil
}

// Render writes records as source text, one record per line.
func Render(records []Record) string {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(EncodeRecord(r))
		sb.WriteString("\n")
	}
	return sb.String()
}
