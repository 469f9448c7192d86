package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"fortio.org/safecast"
)

// FileSet manages a collection of source files and resolves spans to positions.
type FileSet struct {
	files []File
	index map[string]FileID // path -> id
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0),
		index: make(map[string]FileID),
	}
}

// Add stores a file from normalized bytes, computes LineIdx, and returns a new FileID.
func (fs *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	lineIdx := buildLineIndex(content)
	normalizedPath := normalizePath(path)

	lenFiles, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    normalizedPath,
		Content: content,
		LineIdx: lineIdx,
		Flags:   flags,
	})
	fs.index[normalizedPath] = id
	return id
}

// Load reads a file from disk, normalizes CRLF/BOM, and calls Add.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return fs.Add(path, content, flags), nil
}

// AddVirtual stores an in-memory file (tests, stdin).
func (fs *FileSet) AddVirtual(name string, content []byte) FileID {
	return fs.Add(name, content, FileVirtual)
}

// Get returns the file for an ID.
func (fs *FileSet) Get(id FileID) (*File, bool) {
	if int(id) >= len(fs.files) {
		return nil, false
	}
	return &fs.files[id], true
}

// Position resolves a span start to a path plus line/column.
func (fs *FileSet) Position(sp Span) (string, LineCol, bool) {
	f, ok := fs.Get(sp.File)
	if !ok {
		return "", LineCol{}, false
	}
	return f.Path, toLineCol(f.LineIdx, sp.Start), true
}

func toLineCol(lineIdx []uint32, off uint32) LineCol {
	// Пустой LineIdx: весь файл — одна строка.
	if len(lineIdx) == 0 {
		return LineCol{Line: 1, Col: off + 1}
	}
	// Первая строка с концом >= off.
	line := sort.Search(len(lineIdx), func(i int) bool {
		return lineIdx[i] >= off
	})
	if line == 0 {
		return LineCol{Line: 1, Col: off + 1}
	}
	return LineCol{
		Line: uint32(line) + 1,
		Col:  off - lineIdx[line-1],
	}
}

func normalizePath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
