package poifs

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"strings"
)

// FormatDescriptions describes the values InspectFormat returns.
var FormatDescriptions = map[string]string{
	"xls":  "Excel 97-2003 binary workbook",
	"xlsb": "Excel 2007 binary workbook",
	"xlsx": "Excel 2007 XML workbook",
	"ods":  "OpenDocument spreadsheet",
	"zip":  "Unknown ZIP file",
	"":     "Unknown file type",
}

var zipSignature = []byte("PK\x03\x04")

// InspectFormat guesses the container format from file content. OLE2
// files report "xls"; zip packages are told apart by their part names.
func InspectFormat(content []byte) string {
	if len(content) < len(Signature) {
		return ""
	}
	if bytes.HasPrefix(content, Signature) {
		return "xls"
	}
	if !bytes.HasPrefix(content, zipSignature) {
		return ""
	}
	zf, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "zip"
	}
	// Some producers write backslashes or lower case part names.
	parts := make(map[string]bool)
	for _, f := range zf.File {
		parts[strings.ToLower(strings.ReplaceAll(f.Name, "\\", "/"))] = true
	}
	switch {
	case parts["xl/workbook.xml"]:
		return "xlsx"
	case parts["xl/workbook.bin"]:
		return "xlsb"
	case parts["content.xml"]:
		return "ods"
	}
	return "zip"
}

// InspectFile runs InspectFormat on the file at path.
func InspectFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return InspectFormat(content), nil
}
