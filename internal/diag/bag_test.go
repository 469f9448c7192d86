package diag

import (
	"sync"
	"testing"

	"latch/internal/source"
)

func TestBagLimit(t *testing.T) {
	bag := NewBag(2)

	if !bag.Add(Diagnostic{Severity: SevError, Code: ElabUnknownParam}) {
		t.Error("Add должен принимать диагностику в пределах лимита")
	}
	if !bag.Add(Diagnostic{Severity: SevWarning, Code: ElabInfo}) {
		t.Error("Add должен принимать вторую диагностику")
	}
	if bag.Add(Diagnostic{Severity: SevError, Code: ElabUnknownPort}) {
		t.Error("Add должен отклонять диагностику сверх лимита")
	}
	if bag.Len() != 2 {
		t.Errorf("Len = %d, ожидали 2", bag.Len())
	}
}

func TestBagHasErrors(t *testing.T) {
	bag := NewBag(8)
	bag.Add(Diagnostic{Severity: SevWarning, Code: ElabInfo})
	if bag.HasErrors() {
		t.Error("предупреждения не считаются ошибками")
	}
	bag.Add(Diagnostic{Severity: SevError, Code: ElabUnknownParam})
	if !bag.HasErrors() {
		t.Error("HasErrors должен видеть SevError")
	}

	bugs := NewBag(8)
	bugs.Add(Diagnostic{Severity: SevBug, Code: ElabInternal})
	if !bugs.HasErrors() {
		t.Error("SevBug тоже ошибка")
	}
}

func TestBagSort(t *testing.T) {
	bag := NewBag(8)
	bag.Add(Diagnostic{Severity: SevError, Code: ElabUnknownPort, Primary: source.Span{File: 1, Start: 50, End: 60}})
	bag.Add(Diagnostic{Severity: SevError, Code: ElabUnknownParam, Primary: source.Span{File: 0, Start: 10, End: 20}})
	bag.Add(Diagnostic{Severity: SevError, Code: ElabTooManyParamArgs, Primary: source.Span{File: 1, Start: 5, End: 8}})
	bag.Sort()

	items := bag.Items()
	if items[0].Code != ElabUnknownParam {
		t.Errorf("первый после сортировки: %s", items[0].Code.ID())
	}
	if items[1].Code != ElabTooManyParamArgs || items[2].Code != ElabUnknownPort {
		t.Errorf("неверный порядок внутри файла: %s, %s", items[1].Code.ID(), items[2].Code.ID())
	}
}

func TestBagDedup(t *testing.T) {
	bag := NewBag(8)
	sp := source.Span{File: 1, Start: 10, End: 20}
	bag.Add(Diagnostic{Severity: SevError, Code: ElabUnknownParam, Primary: sp, Message: "first"})
	bag.Add(Diagnostic{Severity: SevError, Code: ElabUnknownParam, Primary: sp, Message: "second"})
	bag.Add(Diagnostic{Severity: SevError, Code: ElabUnknownPort, Primary: sp})
	bag.Dedup()

	if bag.Len() != 2 {
		t.Fatalf("Dedup оставил %d диагностик, ожидали 2", bag.Len())
	}
	// Dedup сохраняет первую из дубликатов
	if bag.Items()[0].Message != "first" {
		t.Errorf("Dedup должен сохранять первую диагностику, получили: %q", bag.Items()[0].Message)
	}
}

func TestBagMergeGrowsLimit(t *testing.T) {
	a := NewBag(1)
	a.Add(Diagnostic{Severity: SevError, Code: ElabUnknownParam})
	b := NewBag(2)
	b.Add(Diagnostic{Severity: SevError, Code: ElabUnknownPort})
	b.Add(Diagnostic{Severity: SevWarning, Code: ElabInfo})

	a.Merge(b)
	if a.Len() != 3 {
		t.Errorf("Merge должен вместить все элементы, Len = %d", a.Len())
	}
}

func TestReportBuilderEmitOnce(t *testing.T) {
	bag := NewBag(8)
	rep := BagReporter{Bag: bag}

	b := ReportError(rep, ElabUnknownParam, source.Span{File: 1, Start: 3, End: 7}, "no parameter `X` in module `m`").
		WithNote(source.Span{File: 1}, "declared parameters are `A`")
	b.Emit()
	b.Emit() // повторный Emit — no-op

	if bag.Len() != 1 {
		t.Fatalf("ожидали ровно одну диагностику, получили %d", bag.Len())
	}
	d := bag.Items()[0]
	if d.Code != ElabUnknownParam || d.Severity != SevError {
		t.Errorf("неверные код/severity: %s, %v", d.Code.ID(), d.Severity)
	}
	if len(d.Notes) != 1 || d.Notes[0].Msg != "declared parameters are `A`" {
		t.Errorf("note не дошла: %+v", d.Notes)
	}
}

func TestLockedReporterConcurrent(t *testing.T) {
	bag := NewBag(256)
	rep := NewLockedReporter(BagReporter{Bag: bag})

	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for range 8 {
				rep.Report(ElabInfo, SevWarning, source.Span{File: source.FileID(g)}, "note", nil)
			}
		}(g)
	}
	wg.Wait()

	if bag.Len() != 128 {
		t.Errorf("потеряны диагностики: Len = %d, ожидали 128", bag.Len())
	}
}

func TestCodeID(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{RegFrozen, "REG1001"},
		{ElabTooManyParamArgs, "ELB3001"},
		{ElabPositionalOnly, "ELB3005"},
		{DesignBadFile, "IO4002"},
	}
	for _, tt := range tests {
		if got := tt.code.ID(); got != tt.want {
			t.Errorf("ID(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}
