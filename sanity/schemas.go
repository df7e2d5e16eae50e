package sanity

import (
	"fmt"

	"github.com/yamitzky/hssf-go/record"
)

var cellSids = []uint16{
	record.XL_ROW, record.XL_DBCELL,
	record.XL_NUMBER, record.XL_RK, record.XL_MULRK, record.XL_LABEL, record.XL_LABELSST,
	record.XL_BLANK, record.XL_MULBLANK, record.XL_BOOLERR,
	record.XL_FORMULA, record.XL_STRING, record.XL_ARRAY, record.XL_SHRFMLA, record.XL_TABLEOP,
}

// WorkbookSchema is the globals substream order.
var WorkbookSchema = &Schema{
	Name: "workbook globals",
	Entries: []Entry{
		one(record.XL_BOF),
		{Sids: []uint16{record.XL_CONTINUE}, Card: Anywhere},
		opt(record.XL_INTERFACEHDR),
		opt(record.XL_MMS),
		opt(record.XL_INTERFACEEND),
		opt(record.XL_WRITEACCESS),
		opt(record.XL_CODEPAGE),
		opt(record.XL_DSF),
		opt(record.XL_TABID),
		opt(record.XL_FNGROUPCOUNT),
		opt(record.XL_WINDOWPROTECT),
		opt(record.XL_PROTECT),
		opt(record.XL_PASSWORD),
		opt(record.XL_PROTECTIONREV4),
		opt(record.XL_PASSWORDREV4),
		one(record.XL_WINDOW1),
		opt(record.XL_BACKUP),
		opt(record.XL_HIDEOBJ),
		opt(record.XL_DATEMODE),
		opt(record.XL_PRECISION),
		opt(record.XL_REFRESHALL),
		opt(record.XL_BOOKBOOL),
		some(record.XL_FONT),
		many(record.XL_FORMAT),
		some(record.XL_XF),
		many(record.XL_STYLE),
		many(record.XL_USESELFS, record.XL_PALETTE),
		some(record.XL_BOUNDSHEET),
		opt(record.XL_COUNTRY),
		many(record.XL_SUPBOOK, record.XL_EXTERNNAME, record.XL_XCT, record.XL_CRN),
		opt(record.XL_EXTERNSHEET),
		many(record.XL_NAME),
		opt(record.XL_MSO_DRAWING_GROUP),
		opt(record.XL_SST),
		opt(record.XL_EXTSST),
		one(record.XL_EOF),
	},
	Lenient: true,
}

// SheetSchema is the worksheet substream order.
var SheetSchema = &Schema{
	Name: "worksheet",
	Entries: []Entry{
		one(record.XL_BOF),
		{Sids: []uint16{record.XL_CONTINUE}, Card: Anywhere},
		opt(record.XL_UNCALCED),
		opt(record.XL_INDEX),
		opt(record.XL_CALCMODE),
		opt(record.XL_CALCCOUNT),
		opt(record.XL_REFMODE),
		opt(record.XL_ITERATION),
		opt(record.XL_DELTA),
		opt(record.XL_SAVERECALC),
		opt(record.XL_PRINTHEADERS),
		opt(record.XL_PRINTGRIDLINES),
		opt(record.XL_GRIDSET),
		opt(record.XL_GUTS),
		opt(record.XL_DEFAULTROWHEIGHT),
		opt(record.XL_WSBOOL),
		opt(record.XL_HORIZONTALPAGEBREAKS),
		opt(record.XL_VERTICALPAGEBREAKS),
		opt(record.XL_HEADER),
		opt(record.XL_FOOTER),
		opt(record.XL_HCENTER),
		opt(record.XL_VCENTER),
		opt(record.XL_LEFTMARGIN),
		opt(record.XL_RIGHTMARGIN),
		opt(record.XL_TOPMARGIN),
		opt(record.XL_BOTTOMMARGIN),
		opt(record.XL_PLS),
		opt(record.XL_SETUP),
		opt(record.XL_PROTECT),
		opt(record.XL_OBJPROTECT),
		opt(record.XL_SCENPROTECT),
		opt(record.XL_PASSWORD),
		opt(record.XL_DEFCOLWIDTH),
		many(record.XL_COLINFO),
		one(record.XL_DIMENSION),
		many(cellSids...),
		many(record.XL_MSO_DRAWING, record.XL_OBJ, record.XL_TXO, record.XL_MSO_DRAWING_SELECTION, record.XL_NOTE),
		one(record.XL_WINDOW2),
		opt(record.XL_SCL),
		opt(record.XL_PANE),
		many(record.XL_SELECTION),
		many(record.XL_MERGEDCELLS),
		many(record.XL_CONDFMT, record.XL_CF),
		opt(record.XL_DVAL),
		many(record.XL_DV),
		one(record.XL_EOF),
	},
	Lenient: true,
}

// CheckWorkbookRecords checks a globals substream.
func CheckWorkbookRecords(records []record.Record) error {
	if err := Check(WorkbookSchema, records); err != nil {
		return err
	}
	return CheckSuccessors(records)
}

// CheckSheetRecords checks a worksheet substream, including the records
// that must directly follow their headers.
func CheckSheetRecords(records []record.Record) error {
	if err := Check(SheetSchema, records); err != nil {
		return err
	}
	return CheckSuccessors(records)
}

// CheckSuccessors checks that DVAL is immediately followed by its DV
// records and every CFHEADER by its CF rules.
func CheckSuccessors(records []record.Record) error {
	for i, r := range records {
		var want int
		var sid uint16
		switch h := r.(type) {
		case *record.DValRecord:
			want, sid = int(h.DVCount), record.XL_DV
		case *record.CFHeaderRecord:
			want, sid = int(h.NumRules), record.XL_CF
		default:
			continue
		}
		for k := 1; k <= want; k++ {
			if i+k >= len(records) || records[i+k].Sid() != sid {
				return &Failure{Index: i, Sid: r.Sid(), Reason: fmt.Sprintf("expected %d %s records after it, found %d", want, record.Name(sid), k-1)}
			}
		}
		if sid == record.XL_DV && i+want+1 < len(records) && records[i+want+1].Sid() == record.XL_DV {
			return &Failure{Index: i + want + 1, Sid: record.XL_DV, Reason: "more DV records than DVAL counts"}
		}
	}
	return nil
}

// CheckStream splits a whole workbook stream into its substreams and
// checks the globals and every worksheet. Failure indices are positions
// in records.
func CheckStream(records []record.Record) error {
	if len(records) == 0 || records[0].Sid() != record.XL_BOF {
		return &Failure{Index: 0, Sid: record.XL_BOF, Reason: "stream does not start with BOF"}
	}
	sheets, boundSheets := 0, 0
	for start := 0; start < len(records); {
		if records[start].Sid() != record.XL_BOF {
			// Padding or stray records between substreams.
			start++
			continue
		}
		end := skipSubstream(records, start)
		if end < 0 {
			return &Failure{Index: start, Sid: record.XL_BOF, Reason: "substream has no EOF"}
		}
		sub := records[start : end+1]
		bof, ok := sub[0].(*record.BOFRecord)
		if !ok {
			return &Failure{Index: start, Sid: record.XL_BOF, Reason: "unreadable BOF"}
		}
		var err error
		switch bof.Type {
		case record.XL_WORKBOOK_GLOBALS:
			for _, r := range sub {
				if r.Sid() == record.XL_BOUNDSHEET {
					boundSheets++
				}
			}
			err = CheckWorkbookRecords(sub)
		case record.XL_WORKSHEET:
			sheets++
			err = CheckSheetRecords(sub)
		default:
			sheets++
		}
		if f, ok := err.(*Failure); ok {
			f.Index += start
			return f
		}
		start = end + 1
	}
	if sheets != boundSheets {
		return &Failure{Index: len(records), Sid: record.XL_BOUNDSHEET, Reason: fmt.Sprintf("%d sheets declared, %d substreams found", boundSheets, sheets)}
	}
	return nil
}
