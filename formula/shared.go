package formula

// ToAbsolute converts the tRefN and tAreaN tokens of a shared formula to
// tRef and tArea tokens for the cell at row, col. Other tokens are
// copied unchanged.
func ToAbsolute(tokens []Ptg, row, col int) []Ptg {
	out := Clone(tokens)
	for i := range out {
		p := &out[i]
		switch Base(p.ID) {
		case TRefN:
			p.ID = p.ID&^0x1F | TRef&0x1F
			p.Row, p.Col = absRow(p.Row, p.RowRel, row), absCol(p.Col, p.ColRel, col)
		case TAreaN:
			p.ID = p.ID&^0x1F | TArea&0x1F
			p.Row, p.Col = absRow(p.Row, p.RowRel, row), absCol(p.Col, p.ColRel, col)
			p.Row2, p.Col2 = absRow(p.Row2, p.Row2Rel, row), absCol(p.Col2, p.Col2Rel, col)
		}
	}
	return out
}

func absRow(v int, rel bool, base int) int {
	if !rel {
		return v
	}
	return (base + v) & MaxRow
}

func absCol(v int, rel bool, base int) int {
	if !rel {
		return v
	}
	return (base + v) & MaxCol
}

// ExpPtg returns the tExp token a member of a shared or array formula
// group holds in place of its own tokens.
func ExpPtg(row, col int) Ptg {
	return Ptg{ID: TExp, Row: row, Col: col}
}

// ExpCell reports the anchor cell when rgce is a lone tExp token.
func ExpCell(rgce []byte) (row, col int, ok bool) {
	if len(rgce) != 5 || rgce[0] != TExp {
		return 0, 0, false
	}
	row = int(rgce[1]) | int(rgce[2])<<8
	col = int(rgce[3]) | int(rgce[4])<<8
	return row, col, true
}

// References returns the reference tokens of a formula, in order.
func References(tokens []Ptg) []Ptg {
	var refs []Ptg
	for _, p := range tokens {
		switch Base(p.ID) {
		case TRef, TArea, TRefN, TAreaN, TRef3d, TArea3d:
			refs = append(refs, p)
		}
	}
	return refs
}
