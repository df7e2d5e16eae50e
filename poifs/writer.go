package poifs

import (
	"encoding/binary"
	"io"
	"sort"
	"strings"
	"unicode/utf16"
)

// Layout of a version 3 compound file.
const (
	SectorSize       = 512
	MiniSectorSize   = 64
	MiniStreamCutoff = 4096

	dirEntrySize   = 128
	headerDIFATLen = 109
	idsPerSector   = SectorSize / 4

	freeSect   = 0xFFFFFFFF
	endOfChain = 0xFFFFFFFE
	fatSect    = 0xFFFFFFFD
	difSect    = 0xFFFFFFFC
	noStream   = 0xFFFFFFFF
)

// Directory entry object types.
const (
	typeStorage = 1
	typeStream  = 2
	typeRoot    = 5
)

type dirNode struct {
	name               string
	kind               byte
	clsid              [16]byte
	left, right, child uint32
	start              uint32
	size               uint32
	data               []byte
}

// flatten lists the tree in directory order, root first, and links each
// directory's children into a balanced binary tree.
func flatten(root *DirectoryEntry) []*dirNode {
	nodes := []*dirNode{{name: RootName, kind: typeRoot, clsid: root.CLSID, left: noStream, right: noStream, child: noStream}}
	var walk func(dir *DirectoryEntry, idx int)
	walk = func(dir *DirectoryEntry, idx int) {
		var kids []int
		var dirs []*DirectoryEntry
		var dirIdx []int
		for _, e := range dir.entries {
			n := &dirNode{name: e.EntryName(), left: noStream, right: noStream, child: noStream}
			switch e := e.(type) {
			case *DocumentEntry:
				n.kind = typeStream
				n.data = e.Data
				n.size = uint32(len(e.Data))
			case *DirectoryEntry:
				n.kind = typeStorage
				n.clsid = e.CLSID
				dirs = append(dirs, e)
				dirIdx = append(dirIdx, len(nodes))
			}
			kids = append(kids, len(nodes))
			nodes = append(nodes, n)
		}
		sort.SliceStable(kids, func(a, b int) bool {
			return compareNames(nodes[kids[a]].name, nodes[kids[b]].name) < 0
		})
		nodes[idx].child = balance(nodes, kids)
		for i, d := range dirs {
			walk(d, dirIdx[i])
		}
	}
	walk(root, 0)
	return nodes
}

// compareNames orders siblings the way the format requires: shorter names
// first, then by upper-cased name.
func compareNames(a, b string) int {
	la, lb := len(utf16.Encode([]rune(a))), len(utf16.Encode([]rune(b)))
	if la != lb {
		return la - lb
	}
	return strings.Compare(strings.ToUpper(a), strings.ToUpper(b))
}

func balance(nodes []*dirNode, sorted []int) uint32 {
	if len(sorted) == 0 {
		return noStream
	}
	mid := len(sorted) / 2
	n := nodes[sorted[mid]]
	n.left = balance(nodes, sorted[:mid])
	n.right = balance(nodes, sorted[mid+1:])
	return uint32(sorted[mid])
}

func sectorsFor(n, size int) int {
	return (n + size - 1) / size
}

// WriteTo serializes the file system as a version 3 compound file with
// 512-byte sectors. Timestamps and CLSIDs of streams are zero, so equal
// trees always produce equal bytes.
func (fs *FileSystem) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(fs.Bytes())
	return int64(n), err
}

// Bytes returns the serialized compound file.
func (fs *FileSystem) Bytes() []byte {
	nodes := flatten(fs.Root)

	var miniStream []byte
	var miniFAT []uint32
	var big []*dirNode
	for _, n := range nodes {
		if n.kind != typeStream {
			continue
		}
		switch {
		case n.size == 0:
			n.start = endOfChain
		case n.size < MiniStreamCutoff:
			count := sectorsFor(int(n.size), MiniSectorSize)
			n.start = uint32(len(miniFAT))
			for i := 0; i < count; i++ {
				miniFAT = append(miniFAT, uint32(len(miniFAT)+1))
			}
			miniFAT[len(miniFAT)-1] = endOfChain
			miniStream = append(miniStream, n.data...)
			miniStream = append(miniStream, make([]byte, count*MiniSectorSize-len(n.data))...)
		default:
			big = append(big, n)
		}
	}

	bigCount := 0
	for _, n := range big {
		bigCount += sectorsFor(len(n.data), SectorSize)
	}
	msCount := sectorsFor(len(miniStream), SectorSize)
	mfCount := sectorsFor(4*len(miniFAT), SectorSize)
	dirCount := sectorsFor(dirEntrySize*len(nodes), SectorSize)
	base := bigCount + msCount + mfCount + dirCount

	fatCount, difCount := 0, 0
	for {
		need := sectorsFor(base+fatCount+difCount, idsPerSector)
		dif := 0
		if need > headerDIFATLen {
			dif = sectorsFor(need-headerDIFATLen, idsPerSector-1)
		}
		if need == fatCount && dif == difCount {
			break
		}
		fatCount, difCount = need, dif
	}

	fat := make([]uint32, fatCount*idsPerSector)
	for i := range fat {
		fat[i] = freeSect
	}
	next := uint32(0)
	chain := func(count int) uint32 {
		if count == 0 {
			return endOfChain
		}
		start := next
		for i := 0; i < count; i++ {
			fat[next] = next + 1
			next++
		}
		fat[next-1] = endOfChain
		return start
	}

	for _, n := range big {
		n.start = chain(sectorsFor(len(n.data), SectorSize))
	}
	root := nodes[0]
	root.start = chain(msCount)
	root.size = uint32(len(miniStream))
	firstMiniFAT := chain(mfCount)
	firstDir := chain(dirCount)
	fatStart := next
	for i := 0; i < fatCount; i++ {
		fat[next] = fatSect
		next++
	}
	difStart := next
	for i := 0; i < difCount; i++ {
		fat[next] = difSect
		next++
	}

	out := make([]byte, 0, SectorSize*(1+int(next)))
	out = appendHeader(out, fatCount, firstDir, firstMiniFAT, mfCount, difStart, difCount, fatStart)

	for _, n := range big {
		out = appendPadded(out, n.data)
	}
	out = appendPadded(out, miniStream)
	out = appendIDs(out, miniFAT, mfCount*idsPerSector)
	for _, n := range nodes {
		out = appendDirEntry(out, n)
	}
	for i := len(nodes); i < dirCount*SectorSize/dirEntrySize; i++ {
		out = appendDirEntry(out, &dirNode{left: noStream, right: noStream, child: noStream})
	}
	out = appendIDs(out, fat, len(fat))
	for i := 0; i < difCount; i++ {
		var ids []uint32
		for j := 0; j < idsPerSector-1; j++ {
			k := headerDIFATLen + i*(idsPerSector-1) + j
			if k < fatCount {
				ids = append(ids, fatStart+uint32(k))
			} else {
				ids = append(ids, freeSect)
			}
		}
		if i == difCount-1 {
			ids = append(ids, endOfChain)
		} else {
			ids = append(ids, difStart+uint32(i+1))
		}
		out = appendIDs(out, ids, idsPerSector)
	}
	return out
}

func appendHeader(out []byte, fatCount int, firstDir, firstMiniFAT uint32, mfCount int, difStart uint32, difCount int, fatStart uint32) []byte {
	le := binary.LittleEndian
	out = append(out, Signature...)
	out = append(out, make([]byte, 16)...)
	out = le.AppendUint16(out, 0x003E)
	out = le.AppendUint16(out, 0x0003)
	out = le.AppendUint16(out, 0xFFFE)
	out = le.AppendUint16(out, 9)
	out = le.AppendUint16(out, 6)
	out = append(out, make([]byte, 6)...)
	out = le.AppendUint32(out, 0)
	out = le.AppendUint32(out, uint32(fatCount))
	out = le.AppendUint32(out, firstDir)
	out = le.AppendUint32(out, 0)
	out = le.AppendUint32(out, MiniStreamCutoff)
	out = le.AppendUint32(out, firstMiniFAT)
	out = le.AppendUint32(out, uint32(mfCount))
	if difCount == 0 {
		out = le.AppendUint32(out, endOfChain)
	} else {
		out = le.AppendUint32(out, difStart)
	}
	out = le.AppendUint32(out, uint32(difCount))
	for i := 0; i < headerDIFATLen; i++ {
		if i < fatCount {
			out = le.AppendUint32(out, fatStart+uint32(i))
		} else {
			out = le.AppendUint32(out, freeSect)
		}
	}
	return out
}

func appendPadded(out, data []byte) []byte {
	out = append(out, data...)
	if rem := len(data) % SectorSize; rem != 0 {
		out = append(out, make([]byte, SectorSize-rem)...)
	}
	return out
}

func appendIDs(out []byte, ids []uint32, total int) []byte {
	for i := 0; i < total; i++ {
		id := uint32(freeSect)
		if i < len(ids) {
			id = ids[i]
		}
		out = binary.LittleEndian.AppendUint32(out, id)
	}
	return out
}

func appendDirEntry(out []byte, n *dirNode) []byte {
	le := binary.LittleEndian
	name := make([]byte, 64)
	nameLen := 0
	if n.name != "" {
		units := utf16.Encode([]rune(n.name))
		for i, u := range units {
			le.PutUint16(name[2*i:], u)
		}
		nameLen = 2 * (len(units) + 1)
	}
	out = append(out, name...)
	out = le.AppendUint16(out, uint16(nameLen))
	color := byte(1)
	if n.kind == 0 {
		color = 0
	}
	out = append(out, n.kind, color)
	out = le.AppendUint32(out, n.left)
	out = le.AppendUint32(out, n.right)
	out = le.AppendUint32(out, n.child)
	out = append(out, n.clsid[:]...)
	out = le.AppendUint32(out, 0)
	out = append(out, make([]byte, 16)...)
	out = le.AppendUint32(out, n.start)
	out = le.AppendUint32(out, n.size)
	out = le.AppendUint32(out, 0)
	return out
}
