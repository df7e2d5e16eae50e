package formula

import (
	"math"
	"strconv"
	"strings"

	"github.com/xuri/efp"

	"github.com/yamitzky/hssf-go/record"
)

// Type says where a formula lives; it decides operand classes and
// which references are allowed.
type Type int

const (
	TypeCell Type = iota
	TypeShared
	TypeArray
	TypeCondFormat
	TypeDataValidation
	TypeName
)

// MaxStringLength is the longest string constant a formula may hold.
const MaxStringLength = 255

type nodeKind int

const (
	nodeLeaf nodeKind = iota
	nodeBinary
	nodeUnary
	nodeParen
	nodeFunc
)

// node is a parsed expression; Parse flattens it to RPN once operand
// classes are known.
type node struct {
	kind     nodeKind
	tok      Ptg
	def      funcDef
	children []*node
}

type frameKind int

const (
	frameOp frameKind = iota
	frameFunc
	frameParen
)

// frame is an entry on the operator stack.
type frame struct {
	kind frameKind
	id   byte
	rank int
	un   bool

	name      string
	height    int
	lastSep   int
	separated bool
}

var infixOps = map[string]byte{
	"+":  TAdd,
	"-":  TSub,
	"*":  TMul,
	"/":  TDiv,
	"^":  TPower,
	"&":  TConcat,
	"<":  TLT,
	"<=": TLE,
	"=":  TEQ,
	">=": TGE,
	">":  TGT,
	"<>": TNE,
	":":  TRange,
}

type parser struct {
	r   Resolver
	typ Type

	out []*node
	ops []*frame
}

// Parse compiles formula text, with or without a leading '=', into
// tokens. r resolves sheet and name references and may be nil when the
// formula uses neither.
func Parse(text string, r Resolver, t Type) ([]Ptg, error) {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "="))
	if text == "" {
		return nil, errorf("empty formula")
	}
	p := &parser{r: r, typ: t}
	ps := efp.ExcelParser()
	for _, tok := range ps.Parse(text) {
		if err := p.token(tok); err != nil {
			return nil, err
		}
	}
	for len(p.ops) > 0 {
		f := p.ops[len(p.ops)-1]
		if f.kind != frameOp {
			return nil, errorf("unbalanced parentheses in %q", text)
		}
		if err := p.apply(); err != nil {
			return nil, err
		}
	}
	if len(p.out) != 1 {
		return nil, errorf("malformed formula %q", text)
	}
	var rpn []Ptg
	p.emit(p.out[0], p.topClass(), &rpn)
	return rpn, nil
}

func (p *parser) topClass() byte {
	switch p.typ {
	case TypeArray:
		return 'A'
	case TypeName:
		return 'R'
	}
	return 'V'
}

func (p *parser) token(tok efp.Token) error {
	switch tok.TType {
	case efp.TokenTypeWhitespace:
		return nil
	case efp.TokenTypeOperand:
		leaf, err := p.operand(tok)
		if err != nil {
			return err
		}
		p.out = append(p.out, leaf)
	case efp.TokenTypeFunction:
		if tok.TSubType == efp.TokenSubTypeStart {
			name := strings.ToUpper(tok.TValue)
			if name == "ARRAY" || name == "ARRAYROW" {
				return errorf("array constants are not supported")
			}
			p.ops = append(p.ops, &frame{kind: frameFunc, name: name, height: len(p.out), lastSep: len(p.out)})
			return nil
		}
		return p.closeFunc()
	case efp.TokenTypeSubexpression:
		if tok.TSubType == efp.TokenSubTypeStart {
			p.ops = append(p.ops, &frame{kind: frameParen, height: len(p.out)})
			return nil
		}
		return p.closeParen()
	case efp.TokenTypeArgument:
		f, err := p.unwindTo(frameFunc)
		if err != nil {
			return err
		}
		if len(p.out) == f.lastSep {
			p.out = append(p.out, &node{tok: Ptg{ID: TMissArg}})
		}
		f.separated = true
		f.lastSep = len(p.out)
	case efp.TokenTypeOperatorPrefix:
		id := byte(TUminus)
		switch tok.TValue {
		case "+":
			id = TUplus
		case "-":
		default:
			return errorf("unknown prefix operator %q", tok.TValue)
		}
		p.ops = append(p.ops, &frame{kind: frameOp, id: id, rank: unaryRank, un: true})
	case efp.TokenTypeOperatorPostfix:
		if tok.TValue != "%" {
			return errorf("unknown postfix operator %q", tok.TValue)
		}
		if err := p.reduce(pctRank + 1); err != nil {
			return err
		}
		if len(p.out) == 0 {
			return errorf("%% without operand")
		}
		a := p.out[len(p.out)-1]
		p.out[len(p.out)-1] = &node{kind: nodeUnary, tok: Ptg{ID: TPercent}, children: []*node{a}}
	case efp.TokenTypeOperatorInfix:
		id, ok := infixOps[tok.TValue]
		switch tok.TSubType {
		case efp.TokenSubTypeIntersection:
			id, ok = TIsect, true
		case efp.TokenSubTypeUnion:
			id, ok = TUnion, true
		}
		if !ok {
			return errorf("unknown operator %q", tok.TValue)
		}
		rank := binopRules[id].rank
		if err := p.reduce(rank); err != nil {
			return err
		}
		p.ops = append(p.ops, &frame{kind: frameOp, id: id, rank: rank})
	default:
		return errorf("unexpected token %q", tok.TValue)
	}
	return nil
}

// reduce applies stacked operators binding at least as tight as rank.
func (p *parser) reduce(rank int) error {
	for len(p.ops) > 0 {
		f := p.ops[len(p.ops)-1]
		if f.kind != frameOp || f.rank < rank {
			return nil
		}
		if err := p.apply(); err != nil {
			return err
		}
	}
	return nil
}

// unwindTo applies operators up to the innermost frame of kind.
func (p *parser) unwindTo(kind frameKind) (*frame, error) {
	for len(p.ops) > 0 {
		f := p.ops[len(p.ops)-1]
		if f.kind == kind {
			return f, nil
		}
		if f.kind != frameOp {
			return nil, errorf("unbalanced parentheses")
		}
		if err := p.apply(); err != nil {
			return nil, err
		}
	}
	return nil, errorf("separator outside of a function call")
}

func (p *parser) apply() error {
	f := p.ops[len(p.ops)-1]
	p.ops = p.ops[:len(p.ops)-1]
	need := 2
	kind := nodeBinary
	if f.un {
		need, kind = 1, nodeUnary
	}
	if len(p.out) < need {
		return errorf("missing operand for %s", TokenName(f.id))
	}
	n := &node{kind: kind, tok: Ptg{ID: f.id}}
	n.children = append(n.children, p.out[len(p.out)-need:]...)
	p.out = p.out[:len(p.out)-need]
	p.out = append(p.out, n)
	return nil
}

func (p *parser) closeParen() error {
	f, err := p.unwindTo(frameParen)
	if err != nil {
		return err
	}
	p.ops = p.ops[:len(p.ops)-1]
	if len(p.out) != f.height+1 {
		return errorf("malformed parenthesized expression")
	}
	inner := p.out[f.height]
	p.out[f.height] = &node{kind: nodeParen, tok: Ptg{ID: TParen}, children: []*node{inner}}
	return nil
}

func (p *parser) closeFunc() error {
	f, err := p.unwindTo(frameFunc)
	if err != nil {
		return err
	}
	p.ops = p.ops[:len(p.ops)-1]
	if len(p.out) == f.lastSep && f.separated {
		p.out = append(p.out, &node{tok: Ptg{ID: TMissArg}})
	}
	args := append([]*node(nil), p.out[f.height:]...)
	p.out = p.out[:f.height]

	index, ok := FunctionIndex(f.name)
	if !ok {
		return errorf("unknown function %s", f.name)
	}
	def := funcDefs[index]
	if len(args) < def.minArgs || len(args) > def.maxArgs {
		return errorf("%s takes %d to %d arguments, got %d", def.name, def.minArgs, def.maxArgs, len(args))
	}
	tok := Ptg{ID: TFunc, Func: index}
	if def.minArgs != def.maxArgs {
		tok = Ptg{ID: TFuncVar, Func: index, Args: len(args)}
	}
	p.out = append(p.out, &node{kind: nodeFunc, tok: tok, def: def, children: args})
	return nil
}

func (p *parser) operand(tok efp.Token) (*node, error) {
	switch tok.TSubType {
	case efp.TokenSubTypeNumber:
		v, err := strconv.ParseFloat(tok.TValue, 64)
		if err != nil {
			return nil, errorf("bad number %q", tok.TValue)
		}
		if v == math.Trunc(v) && v >= 0 && v <= 0xFFFF {
			return &node{tok: Ptg{ID: TInt, Value: int(v)}}, nil
		}
		return &node{tok: Ptg{ID: TNum, Number: v}}, nil
	case efp.TokenSubTypeText:
		if record.CharCount(tok.TValue) > MaxStringLength {
			return nil, errorf("string constant longer than %d characters", MaxStringLength)
		}
		return &node{tok: Ptg{ID: TStr, Text: tok.TValue}}, nil
	case efp.TokenSubTypeLogical:
		v := 0
		if strings.EqualFold(tok.TValue, "TRUE") {
			v = 1
		}
		return &node{tok: Ptg{ID: TBool, Value: v}}, nil
	case efp.TokenSubTypeError:
		for code, s := range ErrorText {
			if strings.EqualFold(s, tok.TValue) {
				return &node{tok: Ptg{ID: TErr, Value: code}}, nil
			}
		}
		return nil, errorf("unknown error constant %q", tok.TValue)
	}
	t, err := p.reference(tok.TValue)
	if err != nil {
		return nil, err
	}
	return &node{tok: t}, nil
}

// reference parses a cell, area or name operand with an optional sheet
// prefix.
func (p *parser) reference(s string) (Ptg, error) {
	prefix, ref := splitSheet(s)
	if ref == "" {
		return Ptg{}, errorf("bad reference %q", s)
	}
	if prefix == "" {
		if t, ok := parseArea(ref); ok {
			return t, nil
		}
		if strings.EqualFold(ref, "TRUE") || strings.EqualFold(ref, "FALSE") {
			return Ptg{ID: TBool, Value: boolInt(strings.EqualFold(ref, "TRUE"))}, nil
		}
		if p.r != nil {
			if i, ok := p.r.NameIndex(ref); ok {
				return Ptg{ID: TName, Index: i}, nil
			}
		}
		return Ptg{}, errorf("unknown name %q", ref)
	}
	if p.r == nil {
		return Ptg{}, errorf("sheet reference %q needs a workbook", s)
	}
	sref, err := parseSheetRef(prefix)
	if err != nil {
		return Ptg{}, err
	}
	ixti, err := p.r.ExternSheetIndex(sref)
	if err != nil {
		return Ptg{}, err
	}
	if strings.EqualFold(ref, "#REF!") {
		return Ptg{ID: TRefErr3d, Sheet: ixti}, nil
	}
	t, ok := parseArea(ref)
	if !ok {
		return Ptg{}, errorf("bad reference %q", s)
	}
	t.Sheet = ixti
	if t.ID == TRef {
		t.ID = TRef3d
	} else {
		t.ID = TArea3d
	}
	return t, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// splitSheet splits "Sheet!A1" at the last '!' outside quotes.
func splitSheet(s string) (prefix, ref string) {
	quoted := false
	cut := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			quoted = !quoted
		case '!':
			if !quoted {
				cut = i
			}
		}
	}
	if cut < 0 {
		return "", s
	}
	return s[:cut], s[cut+1:]
}

// parseSheetRef parses "[book]First:Last", optionally single quoted.
func parseSheetRef(prefix string) (SheetRef, error) {
	if len(prefix) >= 2 && prefix[0] == '\'' && prefix[len(prefix)-1] == '\'' {
		prefix = strings.ReplaceAll(prefix[1:len(prefix)-1], "''", "'")
	}
	var ref SheetRef
	if strings.HasPrefix(prefix, "[") {
		end := strings.IndexByte(prefix, ']')
		if end < 0 {
			return ref, errorf("bad workbook reference %q", prefix)
		}
		ref.Book, prefix = prefix[1:end], prefix[end+1:]
	}
	if prefix == "" {
		return ref, errorf("missing sheet name")
	}
	ref.First, ref.Last = prefix, prefix
	if i := strings.IndexByte(prefix, ':'); i >= 0 {
		ref.First, ref.Last = prefix[:i], prefix[i+1:]
	}
	return ref, nil
}

// parseArea parses A1, $A$1, A1:B2, A:B and 1:2 into an absolute tRef
// or tArea (class bits unset).
func parseArea(s string) (Ptg, bool) {
	first, second, isRange := strings.Cut(s, ":")
	if !isRange {
		c, err := record.ParseCellRef(s)
		if err != nil {
			return Ptg{}, false
		}
		return Ptg{ID: TRef, Row: c.Row, Col: c.Col, RowRel: !c.AbsRow, ColRel: !c.AbsCol}, true
	}
	a, errA := record.ParseCellRef(first)
	b, errB := record.ParseCellRef(second)
	if errA == nil && errB == nil {
		return Ptg{ID: TArea,
			Row: a.Row, Col: a.Col, RowRel: !a.AbsRow, ColRel: !a.AbsCol,
			Row2: b.Row, Col2: b.Col, Row2Rel: !b.AbsRow, Col2Rel: !b.AbsCol}, true
	}
	if c1, abs1, ok := parseColumn(first); ok {
		if c2, abs2, ok := parseColumn(second); ok {
			return Ptg{ID: TArea, Row: 0, Row2: MaxRow, Col: c1, Col2: c2, ColRel: !abs1, Col2Rel: !abs2}, true
		}
	}
	if r1, abs1, ok := parseRowNumber(first); ok {
		if r2, abs2, ok := parseRowNumber(second); ok {
			return Ptg{ID: TArea, Row: r1, Row2: r2, Col: 0, Col2: MaxCol, RowRel: !abs1, Row2Rel: !abs2}, true
		}
	}
	return Ptg{}, false
}

func parseColumn(s string) (col int, abs, ok bool) {
	if strings.HasPrefix(s, "$") {
		abs, s = true, s[1:]
	}
	if s == "" || len(s) > 3 {
		return 0, false, false
	}
	col = 0
	for _, c := range strings.ToUpper(s) {
		if c < 'A' || c > 'Z' {
			return 0, false, false
		}
		col = col*26 + int(c-'A'+1)
	}
	col--
	return col, abs, col <= MaxCol
}

func parseRowNumber(s string) (row int, abs, ok bool) {
	if strings.HasPrefix(s, "$") {
		abs, s = true, s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxRow+1 {
		return 0, false, false
	}
	return n - 1, abs, true
}

var classBits = map[byte]byte{'R': ClassReference, 'V': ClassValue, 'A': ClassArray}

// emit flattens n to RPN, giving operand tokens the class ctx asks for.
func (p *parser) emit(n *node, ctx byte, rpn *[]Ptg) {
	if p.typ == TypeArray && ctx == 'V' {
		ctx = 'A'
	}
	switch n.kind {
	case nodeLeaf:
		t := n.tok
		if t.ID >= TArray {
			t.ID = withClass(t.ID, referenceClass(p.typ, ctx))
		}
		*rpn = append(*rpn, t)
	case nodeBinary, nodeUnary:
		childCtx := byte('V')
		switch n.tok.ID {
		case TRange, TUnion, TIsect:
			childCtx = 'R'
		}
		for _, c := range n.children {
			p.emit(c, childCtx, rpn)
		}
		*rpn = append(*rpn, n.tok)
	case nodeParen:
		p.emit(n.children[0], ctx, rpn)
		*rpn = append(*rpn, n.tok)
	case nodeFunc:
		for i, c := range n.children {
			p.emit(c, n.def.argClass(i), rpn)
		}
		t := n.tok
		class := byte('V')
		switch {
		case ctx == 'A' || n.def.ret == 'A':
			class = 'A'
		case n.def.ret == 'R' && ctx == 'R':
			class = 'R'
		}
		t.ID = withClass(t.ID, class)
		*rpn = append(*rpn, t)
	}
}

func withClass(id, class byte) byte {
	return id&0x1F | classBits[class]
}

// referenceClass picks the class of a reference operand.
func referenceClass(t Type, ctx byte) byte {
	if t == TypeName && ctx == 'V' {
		return 'R'
	}
	return ctx
}
