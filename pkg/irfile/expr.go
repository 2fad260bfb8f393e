package irfile

import (
	"encoding/json"
	"fmt"

	"github.com/rhdl/rhdl/pkg/bir"
	"github.com/rhdl/rhdl/pkg/bitvec"
)

// exprDoc is the tagged-variant JSON shape every bir.Expr marshals to
// and from. Only the fields relevant to Kind are populated.
type exprDoc struct {
	Kind  string            `json:"kind"`
	Value uint64            `json:"value,omitempty"`
	Width int               `json:"width,omitempty"`
	Name  string            `json:"name,omitempty"`
	High  int               `json:"high,omitempty"`
	Low   int               `json:"low,omitempty"`
	Op    string            `json:"op,omitempty"`
	Left  json.RawMessage   `json:"left,omitempty"`
	Right json.RawMessage   `json:"right,omitempty"`
	Operand json.RawMessage `json:"operand,omitempty"`
	Operands []json.RawMessage `json:"operands,omitempty"`
	Sel   json.RawMessage   `json:"sel,omitempty"`
	Then  json.RawMessage   `json:"then,omitempty"`
	Else  json.RawMessage   `json:"else,omitempty"`
	Selector json.RawMessage `json:"selector,omitempty"`
	Cases []caseArmDoc      `json:"cases,omitempty"`
	Default json.RawMessage `json:"default,omitempty"`
	Body  json.RawMessage   `json:"body,omitempty"`
}

type caseArmDoc struct {
	Key   uint64          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func marshalExpr(e bir.Expr) (json.RawMessage, error) {
	switch n := e.(type) {
	case *bir.Literal:
		return json.Marshal(exprDoc{Kind: "literal", Value: n.Value.Uint64(), Width: n.Value.Width()})
	case *bir.Signal:
		return json.Marshal(exprDoc{Kind: "signal", Name: n.Name, Width: n.W})
	case *bir.Slice:
		op, err := marshalExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprDoc{Kind: "slice", Operand: op, High: n.High, Low: n.Low})
	case *bir.Concat:
		ops := make([]json.RawMessage, len(n.Operands))
		for i, o := range n.Operands {
			m, err := marshalExpr(o)
			if err != nil {
				return nil, err
			}
			ops[i] = m
		}
		return json.Marshal(exprDoc{Kind: "concat", Operands: ops})
	case *bir.Binary:
		l, err := marshalExpr(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := marshalExpr(n.Right)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprDoc{Kind: "binary", Op: n.Op.String(), Left: l, Right: r, Width: n.W})
	case *bir.Unary:
		op, err := marshalExpr(n.Operand)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprDoc{Kind: "unary", Op: unopName(n.Op), Operand: op, Width: n.W})
	case *bir.Mux:
		sel, err := marshalExpr(n.Sel)
		if err != nil {
			return nil, err
		}
		then, err := marshalExpr(n.Then)
		if err != nil {
			return nil, err
		}
		els, err := marshalExpr(n.Else)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprDoc{Kind: "mux", Sel: sel, Then: then, Else: els})
	case *bir.CaseSelect:
		sel, err := marshalExpr(n.Selector)
		if err != nil {
			return nil, err
		}
		def, err := marshalExpr(n.Default)
		if err != nil {
			return nil, err
		}
		cases := make([]caseArmDoc, len(n.Cases))
		for i, arm := range n.Cases {
			v, err := marshalExpr(arm.Value)
			if err != nil {
				return nil, err
			}
			cases[i] = caseArmDoc{Key: arm.Key.Uint64(), Value: v}
		}
		return json.Marshal(exprDoc{Kind: "case_select", Selector: sel, Cases: cases, Default: def})
	case *bir.Let:
		val, err := marshalExpr(n.Value)
		if err != nil {
			return nil, err
		}
		body, err := marshalExpr(n.Body)
		if err != nil {
			return nil, err
		}
		return json.Marshal(exprDoc{Kind: "let", Name: n.Name, Operand: val, Body: body})
	case *bir.LetRef:
		return json.Marshal(exprDoc{Kind: "let_ref", Name: n.Name, Width: n.W})
	default:
		return nil, fmt.Errorf("irfile: unknown expression type %T", e)
	}
}

func unmarshalExpr(raw json.RawMessage, widths map[string]int) (bir.Expr, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("irfile: empty expression")
	}
	var d exprDoc
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, err
	}
	switch d.Kind {
	case "literal":
		return bir.Lit(d.Value, d.Width), nil
	case "signal":
		w := d.Width
		if w == 0 {
			w = widths[d.Name]
		}
		return bir.Sig(d.Name, w), nil
	case "slice":
		op, err := unmarshalExpr(d.Operand, widths)
		if err != nil {
			return nil, err
		}
		return &bir.Slice{Operand: op, High: d.High, Low: d.Low}, nil
	case "concat":
		ops := make([]bir.Expr, len(d.Operands))
		for i, o := range d.Operands {
			e, err := unmarshalExpr(o, widths)
			if err != nil {
				return nil, err
			}
			ops[i] = e
		}
		return &bir.Concat{Operands: ops}, nil
	case "binary":
		l, err := unmarshalExpr(d.Left, widths)
		if err != nil {
			return nil, err
		}
		r, err := unmarshalExpr(d.Right, widths)
		if err != nil {
			return nil, err
		}
		op, err := binopFromName(d.Op)
		if err != nil {
			return nil, err
		}
		return bir.Bin(op, l, r, d.Width), nil
	case "unary":
		op, err := unopFromName(d.Op)
		if err != nil {
			return nil, err
		}
		operand, err := unmarshalExpr(d.Operand, widths)
		if err != nil {
			return nil, err
		}
		return bir.Un(op, operand, d.Width), nil
	case "mux":
		sel, err := unmarshalExpr(d.Sel, widths)
		if err != nil {
			return nil, err
		}
		then, err := unmarshalExpr(d.Then, widths)
		if err != nil {
			return nil, err
		}
		els, err := unmarshalExpr(d.Else, widths)
		if err != nil {
			return nil, err
		}
		return &bir.Mux{Sel: sel, Then: then, Else: els}, nil
	case "case_select":
		sel, err := unmarshalExpr(d.Selector, widths)
		if err != nil {
			return nil, err
		}
		def, err := unmarshalExpr(d.Default, widths)
		if err != nil {
			return nil, err
		}
		cases := make([]bir.CaseArm, len(d.Cases))
		for i, arm := range d.Cases {
			v, err := unmarshalExpr(arm.Value, widths)
			if err != nil {
				return nil, err
			}
			cases[i] = bir.CaseArm{Key: bitvec.New(arm.Key, sel.Width()), Value: v}
		}
		return &bir.CaseSelect{Selector: sel, Cases: cases, Default: def}, nil
	case "let":
		val, err := unmarshalExpr(d.Operand, widths)
		if err != nil {
			return nil, err
		}
		body, err := unmarshalExpr(d.Body, widths)
		if err != nil {
			return nil, err
		}
		return &bir.Let{Name: d.Name, Value: val, Body: body}, nil
	case "let_ref":
		return &bir.LetRef{Name: d.Name, W: d.Width}, nil
	default:
		return nil, fmt.Errorf("irfile: unknown expression kind %q", d.Kind)
	}
}

func unopName(op bir.UnOp) string {
	switch op {
	case bir.OpNot:
		return "not"
	case bir.OpNeg:
		return "neg"
	case bir.OpReduceAnd:
		return "reduce_and"
	case bir.OpReduceOr:
		return "reduce_or"
	case bir.OpReduceXor:
		return "reduce_xor"
	case bir.OpRotateLeft:
		return "rotate_left"
	case bir.OpRotateRight:
		return "rotate_right"
	case bir.OpSExt:
		return "sext"
	default:
		return "?"
	}
}

func unopFromName(s string) (bir.UnOp, error) {
	switch s {
	case "not":
		return bir.OpNot, nil
	case "neg":
		return bir.OpNeg, nil
	case "reduce_and":
		return bir.OpReduceAnd, nil
	case "reduce_or":
		return bir.OpReduceOr, nil
	case "reduce_xor":
		return bir.OpReduceXor, nil
	case "rotate_left":
		return bir.OpRotateLeft, nil
	case "rotate_right":
		return bir.OpRotateRight, nil
	case "sext":
		return bir.OpSExt, nil
	default:
		return 0, fmt.Errorf("irfile: unknown unary op %q", s)
	}
}

func binopFromName(s string) (bir.BinOp, error) {
	switch s {
	case "+":
		return bir.OpAdd, nil
	case "-":
		return bir.OpSub, nil
	case "&":
		return bir.OpAnd, nil
	case "|":
		return bir.OpOr, nil
	case "^":
		return bir.OpXor, nil
	case "==":
		return bir.OpEq, nil
	case "!=":
		return bir.OpNe, nil
	case "<":
		return bir.OpLt, nil
	case "<=":
		return bir.OpLe, nil
	case ">":
		return bir.OpGt, nil
	case ">=":
		return bir.OpGe, nil
	case "<<":
		return bir.OpShl, nil
	case ">>":
		return bir.OpShr, nil
	default:
		return 0, fmt.Errorf("irfile: unknown binary op %q", s)
	}
}
