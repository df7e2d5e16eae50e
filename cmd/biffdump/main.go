// Command biffdump inspects BIFF8 workbooks: it lists compound file
// entries, dumps the records of the workbook stream, checks record
// order and exports sheets as CSV.
package main

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yamitzky/hssf-go/hssf"
	"github.com/yamitzky/hssf-go/poifs"
	"github.com/yamitzky/hssf-go/record"
	"github.com/yamitzky/hssf-go/sanity"
)

var version = "dev"

type quotingMode int

const (
	quotingNone quotingMode = iota
	quotingMinimal
	quotingNonNumeric
	quotingAll
)

type options struct {
	records          bool
	check            bool
	csv              bool
	sheet            int
	verbose          bool
	delimiter        rune
	quoting          quotingMode
	dateFormat       string
	ignoreCorruption bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("biffdump", flag.ContinueOnError)
	fs.SetOutput(stderr)

	showVersion := fs.Bool("version", false, "show version")
	records := fs.Bool("records", false, "dump the records of the workbook stream")
	check := fs.Bool("check", false, "check record order")
	csvOut := fs.Bool("csv", false, "export a sheet as CSV")
	sheet := fs.Int("sheet", 1, "sheet number to export, starting at 1")
	verbose := fs.Bool("v", false, "include record payloads in hex")
	delimiterFlag := fs.String("d", ",", "CSV delimiter, 'tab' for a tab")
	quotingFlag := fs.String("q", "minimal", "CSV quoting: none, minimal, nonnumeric or all")
	dateFormat := fs.String("f", "2006-01-02", "layout of date cells in CSV output")
	ignoreCorruption := fs.Bool("ignore-workbook-corruption", false, "drop a truncated record at the end of the workbook stream")

	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, version)
		return 0
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fs.Usage()
		return 2
	}
	if *sheet < 1 {
		fmt.Fprintf(stderr, "invalid sheet number: %d\n", *sheet)
		return 2
	}
	delimiter, err := parseDelimiter(*delimiterFlag)
	if err != nil {
		fmt.Fprintf(stderr, "invalid delimiter: %v\n", err)
		return 2
	}
	quoting, err := parseQuoting(*quotingFlag)
	if err != nil {
		fmt.Fprintf(stderr, "invalid quoting: %v\n", err)
		return 2
	}

	opts := options{
		records:          *records,
		check:            *check,
		csv:              *csvOut,
		sheet:            *sheet,
		verbose:          *verbose,
		delimiter:        delimiter,
		quoting:          quoting,
		dateFormat:       *dateFormat,
		ignoreCorruption: *ignoreCorruption,
	}

	var content []byte
	if rest[0] == "-" {
		content, err = io.ReadAll(stdin)
	} else {
		content, err = os.ReadFile(rest[0])
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	w := bufio.NewWriter(stdout)
	err = dump(w, stderr, content, opts)
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

const usageText = `Usage:

 biffdump [-records [-v]] [-check] [-csv [-sheet N] [-d DELIMITER] [-q QUOTING] [-f LAYOUT]]
          [-ignore-workbook-corruption] [-version] file.xls

Without a mode flag the entries of the compound file are listed. Use '-'
to read from STDIN.

  -records      dump sid, name, offset and length of every record block
  -v            with -records, also dump the payloads in hex
  -check        check the record order of every substream
  -csv          export sheet N (default 1) as CSV
  -d            CSV delimiter, 'tab' or 'x09' for a tab (default ',')
  -q            CSV quoting, 'none' 'minimal' 'nonnumeric' or 'all'
  -f            Go time layout for date cells (default 2006-01-02)
`

func dump(w, stderr io.Writer, content []byte, opts options) error {
	if format := poifs.InspectFormat(content); format != "xls" {
		return fmt.Errorf("not a BIFF8 compound file: %s", poifs.FormatDescriptions[format])
	}
	fsys, err := poifs.Open(content)
	if err != nil {
		return err
	}
	if !opts.records && !opts.check && !opts.csv {
		listEntries(w, fsys.Root, "")
		return nil
	}
	stream, err := hssf.WorkbookStream(fsys)
	if err != nil {
		return err
	}
	if opts.records {
		if err := dumpRecords(w, stream, opts.verbose); err != nil {
			return err
		}
	}
	if opts.check {
		if err := checkRecords(w, stream); err != nil {
			return err
		}
	}
	if opts.csv {
		hopts := &hssf.Options{IgnoreWorkbookCorruption: opts.ignoreCorruption}
		if opts.ignoreCorruption {
			hopts.Logfile = stderr
		}
		wb, err := hssf.OpenFileSystem(fsys, hopts)
		if err != nil {
			return err
		}
		sh := wb.Sheet(opts.sheet - 1)
		if sh == nil {
			return fmt.Errorf("sheet %d out of range, the workbook has %d", opts.sheet, wb.NumSheets())
		}
		return writeSheet(&csvWriter{w: w, delimiter: opts.delimiter, quoting: opts.quoting, lineTerminator: "\n"}, sh, opts)
	}
	return nil
}

func listEntries(w io.Writer, dir *poifs.DirectoryEntry, indent string) {
	for _, e := range dir.Entries() {
		switch e := e.(type) {
		case *poifs.DirectoryEntry:
			fmt.Fprintf(w, "%s%s/\n", indent, printable(e.Name))
			listEntries(w, e, indent+"  ")
		case *poifs.DocumentEntry:
			fmt.Fprintf(w, "%s%s\t%d\n", indent, printable(e.Name), len(e.Data))
		}
	}
}

// printable replaces control characters, which lead names such as
// "\x05SummaryInformation", with \xNN escapes.
func printable(name string) string {
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// dumpRecords prints one line per physical block; CONTINUE blocks are
// listed on their own.
func dumpRecords(w io.Writer, stream []byte, verbose bool) error {
	in := record.NewInputStream(stream)
	n := 0
	for in.HasNextRecord() {
		if err := in.NextRecord(); err != nil {
			return err
		}
		offset, sid := in.Offset(), in.Sid()
		data := in.ReadRemainder()
		if err := in.Err(); err != nil {
			return err
		}
		fmt.Fprintf(w, "%6d %08x %04x %-16s %d\n", n, offset, sid, record.Name(sid), len(data))
		if verbose && len(data) > 0 {
			fmt.Fprint(w, hex.Dump(data))
		}
		n++
	}
	return nil
}

func checkRecords(w io.Writer, stream []byte) error {
	recs, err := record.Decode(stream, nil)
	if err != nil {
		return err
	}
	if err := sanity.CheckStream(recs); err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	fmt.Fprintf(w, "ok: %d records\n", len(recs))
	return nil
}

type field struct {
	text      string
	isNumeric bool
}

type csvWriter struct {
	w              io.Writer
	delimiter      rune
	lineTerminator string
	quoting        quotingMode
}

func writeSheet(cw *csvWriter, sh *hssf.Sheet, opts options) error {
	if !sh.IsWorksheet() {
		return fmt.Errorf("sheet %q holds no cells", sh.Name())
	}
	cells := sh.Cells()
	rows, cols := 0, 0
	for _, c := range cells {
		rows = max(rows, c.Row()+1)
		cols = max(cols, c.Column()+1)
	}
	grid := make([][]field, rows)
	for i := range grid {
		grid[i] = make([]field, cols)
	}
	for _, c := range cells {
		grid[c.Row()][c.Column()] = formatCell(c, opts)
	}
	for _, row := range grid {
		if err := cw.writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

func formatCell(c *hssf.Cell, opts options) field {
	typ := c.Type()
	if typ == hssf.CellFormula {
		typ = c.CachedType()
	}
	switch typ {
	case hssf.CellNumeric:
		if c.IsDateFormatted() {
			if t, err := c.Date(); err == nil {
				return field{text: t.Format(opts.dateFormat)}
			}
		}
		return field{text: strconv.FormatFloat(c.Number(), 'g', -1, 64), isNumeric: true}
	case hssf.CellString:
		return field{text: c.StringValue()}
	case hssf.CellBoolean:
		if c.Bool() {
			return field{text: "TRUE"}
		}
		return field{text: "FALSE"}
	case hssf.CellError:
		if text, ok := record.ErrorTextFromCode[c.ErrorCode()]; ok {
			return field{text: text}
		}
		return field{text: "#ERROR"}
	}
	return field{}
}

func (cw *csvWriter) writeRow(fields []field) error {
	var buf bytes.Buffer
	for i, f := range fields {
		if i > 0 {
			buf.WriteRune(cw.delimiter)
		}
		buf.WriteString(cw.formatField(f))
	}
	buf.WriteString(cw.lineTerminator)
	_, err := cw.w.Write(buf.Bytes())
	return err
}

func (cw *csvWriter) formatField(f field) string {
	if !cw.needsQuote(f) {
		return f.text
	}
	return `"` + strings.ReplaceAll(f.text, `"`, `""`) + `"`
}

func (cw *csvWriter) needsQuote(f field) bool {
	switch cw.quoting {
	case quotingAll:
		return true
	case quotingNonNumeric:
		return !f.isNumeric
	case quotingMinimal:
		return strings.ContainsRune(f.text, cw.delimiter) || strings.ContainsAny(f.text, "\"\r\n")
	}
	return false
}

func parseDelimiter(value string) (rune, error) {
	switch strings.ToLower(value) {
	case "tab", "x09":
		return '\t', nil
	}
	if value == "" {
		return 0, fmt.Errorf("delimiter cannot be empty")
	}
	if strings.HasPrefix(value, "x") && len(value) == 3 {
		decoded, err := strconv.ParseUint(value[1:], 16, 8)
		if err != nil {
			return 0, err
		}
		return rune(decoded), nil
	}
	r, size := utf8.DecodeRuneInString(value)
	if r == utf8.RuneError && size == 1 {
		return rune(value[0]), nil
	}
	return r, nil
}

func parseQuoting(value string) (quotingMode, error) {
	switch strings.ToLower(value) {
	case "none":
		return quotingNone, nil
	case "minimal":
		return quotingMinimal, nil
	case "nonnumeric":
		return quotingNonNumeric, nil
	case "all":
		return quotingAll, nil
	}
	return quotingMinimal, fmt.Errorf("unsupported quoting: %s", value)
}
