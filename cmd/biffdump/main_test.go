package main

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yamitzky/hssf-go/hssf"
)

func sampleFile(t *testing.T) string {
	t.Helper()
	wb := hssf.NewWorkbook(nil)
	sh, err := wb.CreateSheet("People")
	if err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	if _, err := wb.CreateSheet("Empty"); err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(sh.Cell(0, 0).SetString("Huber, Anna"))
	must(sh.Cell(0, 1).SetNumber(42.5))
	must(sh.Cell(0, 2).SetBool(true))
	must(sh.Cell(1, 0).SetString("Meier"))
	must(sh.Cell(1, 1).SetFormula("B1*2"))
	must(sh.Cell(1, 2).SetError(0x07))

	style := wb.CreateCellStyle()
	style.SetDataFormatString("yyyy-mm-dd")
	must(sh.Cell(2, 0).SetDate(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	must(sh.Cell(2, 0).SetStyle(style))

	path := filepath.Join(t.TempDir(), "sample.xls")
	must(wb.WriteFile(path))
	return path
}

func runCLI(args []string, stdin string) (string, string, int) {
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func TestListEntries(t *testing.T) {
	out, errOut, code := runCLI([]string{sampleFile(t)}, "")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if !strings.Contains(out, "Workbook\t") {
		t.Fatalf("Workbook stream not listed: %q", out)
	}
}

func TestDumpRecords(t *testing.T) {
	out, errOut, code := runCLI([]string{"-records", sampleFile(t)}, "")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.Contains(lines[0], "0809") {
		t.Fatalf("first record is not BOF: %q", lines[0])
	}
	if !strings.Contains(out, "000a") {
		t.Fatalf("EOF record missing")
	}

	verbose, _, code := runCLI([]string{"-records", "-v", sampleFile(t)}, "")
	if code != 0 || len(verbose) <= len(out) {
		t.Fatalf("-v did not add payloads (exit %d)", code)
	}
}

func TestCheck(t *testing.T) {
	out, errOut, code := runCLI([]string{"-check", sampleFile(t)}, "")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	if !strings.HasPrefix(out, "ok: ") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestCSV(t *testing.T) {
	out, errOut, code := runCLI([]string{"-csv", sampleFile(t)}, "")
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	want := [][]string{
		{"Huber, Anna", "42.5", "TRUE"},
		{"Meier", "0", "#DIV/0!"},
		{"2024-01-15", "", ""},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d rows, want %d: %q", len(records), len(want), out)
	}
	for i := range want {
		if strings.Join(records[i], "|") != strings.Join(want[i], "|") {
			t.Fatalf("row %d = %q, want %q", i, records[i], want[i])
		}
	}
}

func TestCSVFromStdinWithTab(t *testing.T) {
	content := readFile(t, sampleFile(t))
	out, errOut, code := runCLI([]string{"-csv", "-d", "tab", "-q", "all", "-"}, content)
	if code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, errOut)
	}
	first := strings.SplitN(out, "\n", 2)[0]
	if first != "\"Huber, Anna\"\t\"42.5\"\t\"TRUE\"" {
		t.Fatalf("unexpected first line %q", first)
	}
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{},
		{"-csv", "-sheet", "0", "x.xls"},
		{"-q", "sometimes", "x.xls"},
		{"-nope"},
	} {
		if _, _, code := runCLI(args, ""); code != 2 {
			t.Fatalf("%v: exit code %d, want 2", args, code)
		}
	}
}

func TestFailures(t *testing.T) {
	if _, _, code := runCLI([]string{"-csv", "-sheet", "5", sampleFile(t)}, ""); code != 1 {
		t.Fatalf("missing sheet: exit code %d, want 1", code)
	}
	if _, errOut, code := runCLI([]string{"-"}, "plain text"); code != 1 || !strings.Contains(errOut, "not a BIFF8") {
		t.Fatalf("plain text: exit code %d, stderr %q", code, errOut)
	}
	if _, _, code := runCLI([]string{filepath.Join(t.TempDir(), "missing.xls")}, ""); code != 1 {
		t.Fatalf("missing file: exit code %d, want 1", code)
	}
}

func TestVersion(t *testing.T) {
	out, _, code := runCLI([]string{"-version"}, "")
	if code != 0 || strings.TrimSpace(out) != version {
		t.Fatalf("version: %q (exit %d)", out, code)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}
