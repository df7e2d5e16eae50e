package formula

import (
	"strconv"
	"strings"

	"github.com/yamitzky/hssf-go/record"
)

// SheetRef names the sheets an EXTERNSHEET entry spans. Book is empty
// for the workbook itself.
type SheetRef struct {
	Book  string
	First string
	Last  string
}

// Resolver maps the workbook-level indices tokens carry to names and
// back.
type Resolver interface {
	// ExternSheet returns the sheets behind an EXTERNSHEET index. ok is
	// false when the index cannot be resolved.
	ExternSheet(index int) (ref SheetRef, ok bool)

	// ExternSheetIndex returns, creating it if needed, the EXTERNSHEET
	// index of ref.
	ExternSheetIndex(ref SheetRef) (int, error)

	// NameText returns the text of the one based NAME index.
	NameText(index int) (string, bool)

	// NameIndex returns the one based index of a defined name.
	NameIndex(name string) (int, bool)

	// ExternNameText returns an external or add-in name referenced by
	// tNameX.
	ExternNameText(sheet, index int) (string, bool)
}

// Operator ranks. Higher binds tighter.
const (
	leafRank   = 90
	rangeRank  = 80
	isectRank  = 78
	unionRank  = 76
	unaryRank  = 70
	pctRank    = 60
	powerRank  = 50
	mulRank    = 40
	addRank    = 30
	concatRank = 20
	cmpRank    = 10
)

// binopRules maps binary operator tokens to (rank, symbol).
var binopRules = map[byte]struct {
	rank int
	sym  string
}{
	TAdd:    {addRank, "+"},
	TSub:    {addRank, "-"},
	TMul:    {mulRank, "*"},
	TDiv:    {mulRank, "/"},
	TPower:  {powerRank, "^"},
	TConcat: {concatRank, "&"},
	TLT:     {cmpRank, "<"},
	TLE:     {cmpRank, "<="},
	TEQ:     {cmpRank, "="},
	TGE:     {cmpRank, ">="},
	TGT:     {cmpRank, ">"},
	TNE:     {cmpRank, "<>"},
	TIsect:  {isectRank, " "},
	TUnion:  {unionRank, ","},
	TRange:  {rangeRank, ":"},
}

// unopRules maps unary operator tokens to (rank, prefix, suffix).
var unopRules = map[byte]struct {
	rank     int
	pre, suf string
}{
	TUplus:   {unaryRank, "+", ""},
	TUminus:  {unaryRank, "-", ""},
	TPercent: {pctRank, "", "%"},
}

type operand struct {
	text  string
	rank  int
	union bool
}

// Render turns tokens back into formula text, without the leading '='.
// row and col locate the cell the formula belongs to; they resolve the
// relative offsets of tRefN and tAreaN. tExp and tTbl render as the
// anchor cell, so shared and array groups should be resolved first. r
// may be nil, in which case 3D references and names render as errors.
// Array constants live outside the tokens; use RenderExpr for formulas
// that carry them. Without that data they render as #UNKNOWN!.
func Render(tokens []Ptg, r Resolver, row, col int) string {
	text, err := RenderExpr(tokens, nil, r, row, col)
	if err != nil {
		return unknownText
	}
	return text
}

const unknownText = "#UNKNOWN!"

// RenderExpr is Render for a formula whose array constants are stored
// in extra, the data following its tokens. It fails when extra does not
// hold a constant for every tArray token.
func RenderExpr(tokens []Ptg, extra []byte, r Resolver, row, col int) (string, error) {
	var stack []operand
	pop := func() operand {
		if len(stack) == 0 {
			return operand{rank: leafRank}
		}
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return o
	}
	push := func(text string) {
		stack = append(stack, operand{text: text, rank: leafRank})
	}

	for i := range tokens {
		p := &tokens[i]
		base := Base(p.ID)
		if rule, ok := binopRules[base]; ok {
			b, a := pop(), pop()
			at, bt := a.text, b.text
			if a.rank < rule.rank {
				at = "(" + at + ")"
			}
			if b.rank <= rule.rank {
				bt = "(" + bt + ")"
			}
			stack = append(stack, operand{text: at + rule.sym + bt, rank: rule.rank, union: base == TUnion})
			continue
		}
		if rule, ok := unopRules[base]; ok {
			a := pop()
			at := a.text
			if a.rank < rule.rank {
				at = "(" + at + ")"
			}
			stack = append(stack, operand{text: rule.pre + at + rule.suf, rank: rule.rank})
			continue
		}
		switch base {
		case TParen:
			a := pop()
			push("(" + a.text + ")")
		case TMissArg:
			push("")
		case TStr:
			push(`"` + strings.ReplaceAll(p.Text, `"`, `""`) + `"`)
		case TAttr:
			if p.Attr&AttrSum != 0 {
				a := pop()
				push("SUM(" + a.text + ")")
			}
		case TErr:
			push(errorText(p.Value))
		case TBool:
			if p.Value != 0 {
				push("TRUE")
			} else {
				push("FALSE")
			}
		case TInt:
			push(strconv.Itoa(p.Value))
		case TNum:
			push(formatNumber(p.Number))
		case TArray:
			a, n, err := DecodeArrayConstant(extra)
			if err != nil {
				return "", err
			}
			extra = extra[n:]
			push(a.String())
		case TFunc, TFuncVar:
			argc := p.Args
			if base == TFunc {
				argc = FunctionArgs(p.Func)
			}
			if argc < 0 {
				argc = 0
			}
			args := make([]string, argc)
			for j := argc - 1; j >= 0; j-- {
				a := pop()
				if a.union {
					a.text = "(" + a.text + ")"
				}
				args[j] = a.text
			}
			name := FunctionName(p.Func)
			if p.Func == addInFunc && len(args) > 0 {
				name, args = args[0], args[1:]
			}
			push(name + "(" + strings.Join(args, ",") + ")")
		case TName:
			push(nameText(r, p.Index))
		case TNameX:
			text, ok := "", false
			if r != nil {
				text, ok = r.ExternNameText(p.Sheet, p.Index)
			}
			if !ok {
				text = errorText(ErrName)
			}
			push(text)
		case TRef:
			push(cellText(p.Row, p.Col, p.RowRel, p.ColRel))
		case TArea:
			push(areaText(p))
		case TRefN, TAreaN:
			abs := ToAbsolute([]Ptg{*p}, row, col)[0]
			if abs.IsArea() {
				push(areaText(&abs))
			} else {
				push(cellText(abs.Row, abs.Col, abs.RowRel, abs.ColRel))
			}
		case TRefErr, TAreaErr:
			push(errorText(ErrRef))
		case TRef3d, TArea3d, TRefErr3d, TAreaErr3d:
			prefix, ok := sheetPrefix(r, p.Sheet)
			if !ok {
				push(errorText(ErrRef))
				break
			}
			switch base {
			case TRef3d:
				push(prefix + cellText(p.Row, p.Col, p.RowRel, p.ColRel))
			case TArea3d:
				push(prefix + areaText(p))
			default:
				push(prefix + errorText(ErrRef))
			}
		case TExp, TTbl:
			push(record.CellName(p.Row, p.Col))
		}
	}
	if len(stack) == 0 {
		return "", nil
	}
	return stack[len(stack)-1].text, nil
}

// RenderBytes decodes and renders token bytes, falling back to an error
// marker for undecodable input.
func RenderBytes(rgce []byte, r Resolver, row, col int) string {
	tokens, err := Decode(rgce)
	if err != nil {
		return unknownText
	}
	return Render(tokens, r, row, col)
}

func errorText(code int) string {
	if s, ok := ErrorText[code]; ok {
		return s
	}
	return "#ERR" + strconv.Itoa(code) + "!"
}

func nameText(r Resolver, index int) string {
	if r != nil {
		if s, ok := r.NameText(index); ok {
			return s
		}
	}
	return errorText(ErrName)
}

func formatNumber(v float64) string {
	return strings.ToUpper(strconv.FormatFloat(v, 'g', -1, 64))
}

func cellText(row, col int, rowRel, colRel bool) string {
	var b strings.Builder
	if !colRel {
		b.WriteByte('$')
	}
	b.WriteString(record.ColumnName(col))
	if !rowRel {
		b.WriteByte('$')
	}
	b.WriteString(strconv.Itoa(row + 1))
	return b.String()
}

func areaText(p *Ptg) string {
	abs := func(rel bool) string {
		if rel {
			return ""
		}
		return "$"
	}
	switch {
	case p.Row == 0 && p.Row2 == MaxRow:
		return abs(p.ColRel) + record.ColumnName(p.Col) + ":" + abs(p.Col2Rel) + record.ColumnName(p.Col2)
	case p.Col == 0 && p.Col2 == MaxCol:
		return abs(p.RowRel) + strconv.Itoa(p.Row+1) + ":" + abs(p.Row2Rel) + strconv.Itoa(p.Row2+1)
	}
	return cellText(p.Row, p.Col, p.RowRel, p.ColRel) + ":" + cellText(p.Row2, p.Col2, p.Row2Rel, p.Col2Rel)
}

// Largest row and column indices of a BIFF8 sheet.
const (
	MaxRow = 0xFFFF
	MaxCol = 0xFF
)

func sheetPrefix(r Resolver, index int) (string, bool) {
	if r == nil {
		return "", false
	}
	ref, ok := r.ExternSheet(index)
	if !ok {
		return "", false
	}
	name := ref.First
	if ref.Last != "" && ref.Last != ref.First {
		name += ":" + ref.Last
	}
	if ref.Book != "" {
		name = "[" + ref.Book + "]" + name
	}
	return QuoteSheetName(name) + "!", true
}

// QuoteSheetName wraps a sheet name in single quotes when formula text
// needs them.
func QuoteSheetName(name string) string {
	if !needsQuotes(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func needsQuotes(name string) bool {
	if name == "" {
		return true
	}
	if name[0] >= '0' && name[0] <= '9' {
		return true
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '.', c == ':', c >= 0x80:
		case c == '[' || c == ']':
		default:
			return true
		}
	}
	return false
}
