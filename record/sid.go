package record

import "fmt"

// BIFF8 record identifiers (sids).
const (
	XL_FORMULA               = 0x0006
	XL_EOF                   = 0x000A
	XL_CALCCOUNT             = 0x000C
	XL_CALCMODE              = 0x000D
	XL_PRECISION             = 0x000E
	XL_REFMODE               = 0x000F
	XL_DELTA                 = 0x0010
	XL_ITERATION             = 0x0011
	XL_PROTECT               = 0x0012
	XL_PASSWORD              = 0x0013
	XL_HEADER                = 0x0014
	XL_FOOTER                = 0x0015
	XL_EXTERNSHEET           = 0x0017
	XL_NAME                  = 0x0018
	XL_WINDOWPROTECT         = 0x0019
	XL_VERTICALPAGEBREAKS    = 0x001A
	XL_HORIZONTALPAGEBREAKS  = 0x001B
	XL_NOTE                  = 0x001C
	XL_SELECTION             = 0x001D
	XL_DATEMODE              = 0x0022
	XL_EXTERNNAME            = 0x0023
	XL_LEFTMARGIN            = 0x0026
	XL_RIGHTMARGIN           = 0x0027
	XL_TOPMARGIN             = 0x0028
	XL_BOTTOMMARGIN          = 0x0029
	XL_PRINTHEADERS          = 0x002A
	XL_PRINTGRIDLINES        = 0x002B
	XL_FILEPASS              = 0x002F
	XL_FONT                  = 0x0031
	XL_CONTINUE              = 0x003C
	XL_WINDOW1               = 0x003D
	XL_BACKUP                = 0x0040
	XL_PANE                  = 0x0041
	XL_CODEPAGE              = 0x0042
	XL_PLS                   = 0x004D
	XL_DEFCOLWIDTH           = 0x0055
	XL_CRN                   = 0x005A
	XL_WRITEACCESS           = 0x005C
	XL_OBJ                   = 0x005D
	XL_UNCALCED              = 0x005E
	XL_SAVERECALC            = 0x005F
	XL_OBJPROTECT            = 0x0063
	XL_COLINFO               = 0x007D
	XL_GUTS                  = 0x0080
	XL_WSBOOL                = 0x0081
	XL_GRIDSET               = 0x0082
	XL_HCENTER               = 0x0083
	XL_VCENTER               = 0x0084
	XL_BOUNDSHEET            = 0x0085
	XL_COUNTRY               = 0x008C
	XL_HIDEOBJ               = 0x008D
	XL_PALETTE               = 0x0092
	XL_FNGROUPCOUNT          = 0x009C
	XL_SCL                   = 0x00A0
	XL_SETUP                 = 0x00A1
	XL_MMS                   = 0x00C1
	XL_SCENPROTECT           = 0x00DD
	XL_MULRK                 = 0x00BD
	XL_MULBLANK              = 0x00BE
	XL_DBCELL                = 0x00D7
	XL_BOOKBOOL              = 0x00DA
	XL_XF                    = 0x00E0
	XL_INTERFACEHDR          = 0x00E1
	XL_INTERFACEEND          = 0x00E2
	XL_MERGEDCELLS           = 0x00E5
	XL_MSO_DRAWING_GROUP     = 0x00EB
	XL_MSO_DRAWING           = 0x00EC
	XL_MSO_DRAWING_SELECTION = 0x00ED
	XL_SST                   = 0x00FC
	XL_LABELSST              = 0x00FD
	XL_EXTSST                = 0x00FF
	XL_TABID                 = 0x013D
	XL_USESELFS              = 0x0160
	XL_DSF                   = 0x0161
	XL_SUPBOOK               = 0x01AE
	XL_PROTECTIONREV4        = 0x01AF
	XL_CONDFMT               = 0x01B0
	XL_CF                    = 0x01B1
	XL_DVAL                  = 0x01B2
	XL_TXO                   = 0x01B6
	XL_REFRESHALL            = 0x01B7
	XL_HLINK                 = 0x01B8
	XL_PASSWORDREV4          = 0x01BC
	XL_DV                    = 0x01BE
	XL_XCT                   = 0x0059
	XL_DIMENSION             = 0x0200
	XL_BLANK                 = 0x0201
	XL_NUMBER                = 0x0203
	XL_LABEL                 = 0x0204
	XL_BOOLERR               = 0x0205
	XL_STRING                = 0x0207
	XL_ROW                   = 0x0208
	XL_INDEX                 = 0x020B
	XL_ARRAY                 = 0x0221
	XL_DEFAULTROWHEIGHT      = 0x0225
	XL_TABLEOP               = 0x0236
	XL_WINDOW2               = 0x023E
	XL_RK                    = 0x027E
	XL_STYLE                 = 0x0293
	XL_FORMAT                = 0x041E
	XL_SHRFMLA               = 0x04BC
	XL_BOF                   = 0x0809
)

// BOF substream types.
const (
	XL_WORKBOOK_GLOBALS = 0x0005
	XL_VB_MODULE        = 0x0006
	XL_WORKSHEET        = 0x0010
	XL_CHART            = 0x0020
	XL_MACROSHEET       = 0x0040
	XL_WORKSPACE        = 0x0100
)

var recordNames = map[uint16]string{
	XL_FORMULA:               "FORMULA",
	XL_EOF:                   "EOF",
	XL_CALCCOUNT:             "CALCCOUNT",
	XL_CALCMODE:              "CALCMODE",
	XL_PRECISION:             "PRECISION",
	XL_REFMODE:               "REFMODE",
	XL_DELTA:                 "DELTA",
	XL_ITERATION:             "ITERATION",
	XL_PROTECT:               "PROTECT",
	XL_PASSWORD:              "PASSWORD",
	XL_HEADER:                "HEADER",
	XL_FOOTER:                "FOOTER",
	XL_EXTERNSHEET:           "EXTERNSHEET",
	XL_NAME:                  "NAME",
	XL_WINDOWPROTECT:         "WINDOWPROTECT",
	XL_VERTICALPAGEBREAKS:    "VERTICALPAGEBREAKS",
	XL_HORIZONTALPAGEBREAKS:  "HORIZONTALPAGEBREAKS",
	XL_NOTE:                  "NOTE",
	XL_SELECTION:             "SELECTION",
	XL_DATEMODE:              "DATEMODE",
	XL_EXTERNNAME:            "EXTERNNAME",
	XL_LEFTMARGIN:            "LEFTMARGIN",
	XL_RIGHTMARGIN:           "RIGHTMARGIN",
	XL_TOPMARGIN:             "TOPMARGIN",
	XL_BOTTOMMARGIN:          "BOTTOMMARGIN",
	XL_PRINTHEADERS:          "PRINTHEADERS",
	XL_PRINTGRIDLINES:        "PRINTGRIDLINES",
	XL_FILEPASS:              "FILEPASS",
	XL_FONT:                  "FONT",
	XL_CONTINUE:              "CONTINUE",
	XL_WINDOW1:               "WINDOW1",
	XL_BACKUP:                "BACKUP",
	XL_PANE:                  "PANE",
	XL_CODEPAGE:              "CODEPAGE",
	XL_PLS:                   "PLS",
	XL_DEFCOLWIDTH:           "DEFCOLWIDTH",
	XL_CRN:                   "CRN",
	XL_XCT:                   "XCT",
	XL_WRITEACCESS:           "WRITEACCESS",
	XL_OBJ:                   "OBJ",
	XL_UNCALCED:              "UNCALCED",
	XL_SAVERECALC:            "SAVERECALC",
	XL_OBJPROTECT:            "OBJPROTECT",
	XL_COLINFO:               "COLINFO",
	XL_GUTS:                  "GUTS",
	XL_WSBOOL:                "WSBOOL",
	XL_GRIDSET:               "GRIDSET",
	XL_HCENTER:               "HCENTER",
	XL_VCENTER:               "VCENTER",
	XL_BOUNDSHEET:            "BOUNDSHEET",
	XL_COUNTRY:               "COUNTRY",
	XL_HIDEOBJ:               "HIDEOBJ",
	XL_PALETTE:               "PALETTE",
	XL_FNGROUPCOUNT:          "FNGROUPCOUNT",
	XL_SCL:                   "SCL",
	XL_SETUP:                 "SETUP",
	XL_MMS:                   "MMS",
	XL_SCENPROTECT:           "SCENPROTECT",
	XL_MULRK:                 "MULRK",
	XL_MULBLANK:              "MULBLANK",
	XL_DBCELL:                "DBCELL",
	XL_BOOKBOOL:              "BOOKBOOL",
	XL_XF:                    "XF",
	XL_INTERFACEHDR:          "INTERFACEHDR",
	XL_INTERFACEEND:          "INTERFACEEND",
	XL_MERGEDCELLS:           "MERGEDCELLS",
	XL_MSO_DRAWING_GROUP:     "MSODRAWINGGROUP",
	XL_MSO_DRAWING:           "MSODRAWING",
	XL_MSO_DRAWING_SELECTION: "MSODRAWINGSELECTION",
	XL_SST:                   "SST",
	XL_LABELSST:              "LABELSST",
	XL_EXTSST:                "EXTSST",
	XL_TABID:                 "TABID",
	XL_USESELFS:              "USESELFS",
	XL_DSF:                   "DSF",
	XL_SUPBOOK:               "SUPBOOK",
	XL_PROTECTIONREV4:        "PROTECTIONREV4",
	XL_CONDFMT:               "CFHEADER",
	XL_CF:                    "CF",
	XL_DVAL:                  "DVAL",
	XL_TXO:                   "TXO",
	XL_REFRESHALL:            "REFRESHALL",
	XL_HLINK:                 "HLINK",
	XL_PASSWORDREV4:          "PASSWORDREV4",
	XL_DV:                    "DV",
	XL_DIMENSION:             "DIMENSIONS",
	XL_BLANK:                 "BLANK",
	XL_NUMBER:                "NUMBER",
	XL_LABEL:                 "LABEL",
	XL_BOOLERR:               "BOOLERR",
	XL_STRING:                "STRING",
	XL_ROW:                   "ROW",
	XL_INDEX:                 "INDEX",
	XL_ARRAY:                 "ARRAY",
	XL_DEFAULTROWHEIGHT:      "DEFAULTROWHEIGHT",
	XL_TABLEOP:               "TABLE",
	XL_WINDOW2:               "WINDOW2",
	XL_RK:                    "RK",
	XL_STYLE:                 "STYLE",
	XL_FORMAT:                "FORMAT",
	XL_SHRFMLA:               "SHRFMLA",
	XL_BOF:                   "BOF",
}

// Name returns the conventional upper-case name of a record type, or a
// hex placeholder for sids this package does not know.
func Name(sid uint16) string {
	if name, ok := recordNames[sid]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%04X)", sid)
}

// ErrorTextFromCode maps BOOLERR/FORMULA error codes to their display text.
var ErrorTextFromCode = map[byte]string{
	0x00: "#NULL!",
	0x07: "#DIV/0!",
	0x0F: "#VALUE!",
	0x17: "#REF!",
	0x1D: "#NAME?",
	0x24: "#NUM!",
	0x2A: "#N/A",
}

// ErrorCodeFromText is the inverse of ErrorTextFromCode.
func ErrorCodeFromText(text string) (byte, bool) {
	for code, t := range ErrorTextFromCode {
		if t == text {
			return code, true
		}
	}
	return 0, false
}

var cellSids = map[uint16]bool{
	XL_BLANK:    true,
	XL_BOOLERR:  true,
	XL_FORMULA:  true,
	XL_LABEL:    true,
	XL_LABELSST: true,
	XL_MULBLANK: true,
	XL_MULRK:    true,
	XL_NUMBER:   true,
	XL_RK:       true,
}

// IsCellSid reports whether sid is a cell value record (including the
// MULRK/MULBLANK multi-cell forms).
func IsCellSid(sid uint16) bool {
	return cellSids[sid]
}
