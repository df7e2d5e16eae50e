package poifs

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/richardlehane/mscfb"
)

// Signature is the magic number at the start of every compound file.
var Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// Open parses a compound file held in memory.
func Open(data []byte) (*FileSystem, error) {
	if len(data) >= len(zipSignature) && bytes.HasPrefix(data, zipSignature) {
		return nil, &OfficeXMLError{}
	}
	if len(data) < 512 || !bytes.HasPrefix(data, Signature) {
		return nil, &FormatError{Message: fmt.Sprintf("invalid header signature; read %d bytes", min(len(data), 512))}
	}
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, &FormatError{Message: err.Error()}
	}
	fs := New()
	// mscfb paths drop leading control characters, so storages are found
	// by that path and keep the full names they were created with.
	dirs := map[string]*DirectoryEntry{"": fs.Root}
	for {
		f, err := doc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &FormatError{Message: err.Error()}
		}
		parent, err := mkdirs(dirs, f.Path)
		if err != nil {
			return nil, err
		}
		name := entryName(f)
		if f.FileInfo().IsDir() {
			dir, err := parent.Directory(name)
			if err != nil {
				if dir, err = parent.CreateDirectory(name); err != nil {
					return nil, &FormatError{Message: err.Error()}
				}
			}
			dirs[pathKey(f.Path, f.Name)] = dir
			continue
		}
		content, err := io.ReadAll(f)
		if err != nil {
			return nil, &FormatError{Message: fmt.Sprintf("reading %q: %v", name, err)}
		}
		if int64(len(content)) != f.Size {
			return nil, &FormatError{Message: fmt.Sprintf("stream %q is %d bytes, directory says %d", name, len(content), f.Size)}
		}
		if _, err := parent.CreateDocument(name, content); err != nil {
			return nil, &FormatError{Message: err.Error()}
		}
	}
	return fs, nil
}

// OpenReader reads a compound file from r.
func OpenReader(r io.Reader) (*FileSystem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Open(data)
}

// entryName restores the control character some names start with
// ("\x05SummaryInformation"), which mscfb reports separately.
func entryName(f *mscfb.File) string {
	if f.Initial != 0 && f.Initial < 0x20 && (f.Name == "" || rune(f.Name[0]) != rune(f.Initial)) {
		return string(rune(f.Initial)) + f.Name
	}
	return f.Name
}

func pathKey(path []string, name ...string) string {
	return strings.Join(append(append([]string(nil), path...), name...), "/")
}

// mkdirs returns the storage at path, creating storages mscfb did not
// list before their children under the names it reports.
func mkdirs(dirs map[string]*DirectoryEntry, path []string) (*DirectoryEntry, error) {
	if dir, ok := dirs[pathKey(path)]; ok {
		return dir, nil
	}
	dir := dirs[""]
	for i, name := range path {
		if known, ok := dirs[pathKey(path[:i+1])]; ok {
			dir = known
			continue
		}
		next, err := dir.Directory(name)
		if err != nil {
			if next, err = dir.CreateDirectory(name); err != nil {
				return nil, &FormatError{Message: err.Error()}
			}
		}
		dirs[pathKey(path[:i+1])] = next
		dir = next
	}
	return dir, nil
}
