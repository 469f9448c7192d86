package source

import (
	"bytes"
	"testing"
)

func TestFileSetAddVirtual(t *testing.T) {
	fs := NewFileSet()

	id := fs.AddVirtual("top.toml", []byte("line1\nline2\n"))
	f, ok := fs.Get(id)
	if !ok {
		t.Fatal("Get должен находить только что добавленный файл")
	}
	if f.Path != "top.toml" {
		t.Errorf("неверный путь: %q", f.Path)
	}
	if f.Flags&FileVirtual == 0 {
		t.Error("AddVirtual должен выставлять FileVirtual")
	}

	if _, ok := fs.Get(FileID(99)); ok {
		t.Error("Get должен возвращать false для несуществующего ID")
	}
}

func TestFileSetPosition(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("design.toml", []byte("ab\ncd\nef"))

	tests := []struct {
		name string
		off  uint32
		want LineCol
	}{
		{name: "start of file", off: 0, want: LineCol{Line: 1, Col: 1}},
		{name: "second char of first line", off: 1, want: LineCol{Line: 1, Col: 2}},
		{name: "start of second line", off: 3, want: LineCol{Line: 2, Col: 1}},
		{name: "second char of second line", off: 4, want: LineCol{Line: 2, Col: 2}},
		{name: "start of third line", off: 6, want: LineCol{Line: 3, Col: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, lc, ok := fs.Position(Span{File: id, Start: tt.off, End: tt.off})
			if !ok {
				t.Fatal("Position должен разрешать валидный span")
			}
			if path != "design.toml" {
				t.Errorf("неверный путь: %q", path)
			}
			if lc != tt.want {
				t.Errorf("Position(%d) = %+v, want %+v", tt.off, lc, tt.want)
			}
		})
	}

	if _, _, ok := fs.Position(Span{File: FileID(99)}); ok {
		t.Error("Position должен возвращать false для неизвестного файла")
	}
}

func TestNormalizeCRLF(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		changed bool
	}{
		{name: "no CR", in: "a\nb", want: "a\nb", changed: false},
		{name: "CRLF pairs", in: "a\r\nb\r\n", want: "a\nb\n", changed: true},
		{name: "lone CR kept", in: "a\rb", want: "a\rb", changed: false},
		{name: "mixed", in: "a\r\nb\rc\n", want: "a\nb\rc\n", changed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := normalizeCRLF([]byte(tt.in))
			if !bytes.Equal(out, []byte(tt.want)) {
				t.Errorf("normalizeCRLF(%q) = %q, want %q", tt.in, out, tt.want)
			}
			if changed != tt.changed {
				t.Errorf("changed = %v, want %v", changed, tt.changed)
			}
		})
	}
}

func TestRemoveBOM(t *testing.T) {
	out, had := removeBOM([]byte("\xEF\xBB\xBFtop"))
	if !had || !bytes.Equal(out, []byte("top")) {
		t.Errorf("removeBOM должен срезать BOM, получили: %q, had=%v", out, had)
	}

	out, had = removeBOM([]byte("top"))
	if had || !bytes.Equal(out, []byte("top")) {
		t.Errorf("removeBOM не должен менять файл без BOM: %q, had=%v", out, had)
	}
}
