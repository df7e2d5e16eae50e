package hssf

import (
	"strings"

	"github.com/yamitzky/hssf-go/poifs"
)

// EmbeddedObject is an OLE object stored in its own directory of the
// compound file.
type EmbeddedObject struct {
	Name      string
	Directory *poifs.DirectoryEntry
}

// objectPoolName is the directory some producers keep embedded objects
// in instead of the root.
const objectPoolName = "ObjectPool"

// EmbeddedObjects returns the MBD directories of the file the workbook
// was read from. Only PreserveNodes writes them back.
func (wb *Workbook) EmbeddedObjects() []*EmbeddedObject {
	if wb.fs == nil {
		return nil
	}
	out := embeddedIn(wb.fs.Root)
	if pool, err := wb.fs.Root.Directory(objectPoolName); err == nil {
		out = append(out, embeddedIn(pool)...)
	}
	return out
}

func embeddedIn(dir *poifs.DirectoryEntry) []*EmbeddedObject {
	var out []*EmbeddedObject
	for _, e := range dir.Entries() {
		d, ok := e.(*poifs.DirectoryEntry)
		if !ok || !strings.HasPrefix(strings.ToUpper(d.Name), "MBD") {
			continue
		}
		out = append(out, &EmbeddedObject{Name: d.Name, Directory: d})
	}
	return out
}
