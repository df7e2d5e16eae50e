package model

import "github.com/yamitzky/hssf-go/record"

// BuiltinFormats are the number formats every workbook knows without a
// FORMAT record, by index.
var BuiltinFormats = map[int]string{
	0x00: "General",
	0x01: "0",
	0x02: "0.00",
	0x03: "#,##0",
	0x04: "#,##0.00",
	0x05: `"$"#,##0_);("$"#,##0)`,
	0x06: `"$"#,##0_);[Red]("$"#,##0)`,
	0x07: `"$"#,##0.00_);("$"#,##0.00)`,
	0x08: `"$"#,##0.00_);[Red]("$"#,##0.00)`,
	0x09: "0%",
	0x0A: "0.00%",
	0x0B: "0.00E+00",
	0x0C: "# ?/?",
	0x0D: "# ??/??",
	0x0E: "m/d/yy",
	0x0F: "d-mmm-yy",
	0x10: "d-mmm",
	0x11: "mmm-yy",
	0x12: "h:mm AM/PM",
	0x13: "h:mm:ss AM/PM",
	0x14: "h:mm",
	0x15: "h:mm:ss",
	0x16: "m/d/yy h:mm",
	0x25: "#,##0_);(#,##0)",
	0x26: "#,##0_);[Red](#,##0)",
	0x27: "#,##0.00_);(#,##0.00)",
	0x28: "#,##0.00_);[Red](#,##0.00)",
	0x29: `_(* #,##0_);_(* (#,##0);_(* "-"_);_(@_)`,
	0x2A: `_("$"* #,##0_);_("$"* (#,##0);_("$"* "-"_);_(@_)`,
	0x2B: `_(* #,##0.00_);_(* (#,##0.00);_(* "-"??_);_(@_)`,
	0x2C: `_("$"* #,##0.00_);_("$"* (#,##0.00);_("$"* "-"??_);_(@_)`,
	0x2D: "mm:ss",
	0x2E: "[h]:mm:ss",
	0x2F: "mm:ss.0",
	0x30: "##0.0E+0",
	0x31: "@",
}

// FirstUserFormat is the lowest index given to a custom format.
const FirstUserFormat = 164

// FormatString returns the format string of index idx.
func (w *Workbook) FormatString(idx int) (string, bool) {
	for _, f := range w.formats {
		if int(f.Index) == idx {
			return f.Format, true
		}
	}
	s, ok := BuiltinFormats[idx]
	return s, ok
}

// FormatIndex returns the index of format string s, adding a FORMAT
// record when the workbook does not know it.
func (w *Workbook) FormatIndex(s string) int {
	for _, f := range w.formats {
		if f.Format == s {
			return int(f.Index)
		}
	}
	for idx, b := range BuiltinFormats {
		if b == s {
			return idx
		}
	}
	next := FirstUserFormat
	for _, f := range w.formats {
		next = max(next, int(f.Index)+1)
	}
	w.formats = append(w.formats, &record.FormatRecord{Index: uint16(next), Format: s})
	return next
}

// Formats returns the FORMAT records.
func (w *Workbook) Formats() []*record.FormatRecord { return w.formats }
