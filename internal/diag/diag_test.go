package diag

import (
	"testing"

	"swayc/internal/source"
)

func TestFromBag_SplitsSeverities(t *testing.T) {
	bag := NewBag(10)
	r := BagReporter{Bag: bag}
	ReportWarning(r, StorageDuplicatedKey, source.Span{Start: 1, End: 2}, "dup").Emit()
	ReportError(r, CodegenTooManyArguments, source.Span{Start: 3, End: 4}, "too many").Emit()

	res := FromBag(42, true, bag)
	if !res.HasValue || res.Value != 42 {
		t.Fatalf("expected value to survive errors, got %+v", res)
	}
	if len(res.Warnings) != 1 || len(res.Errors) != 1 {
		t.Fatalf("unexpected split: %d warnings, %d errors", len(res.Warnings), len(res.Errors))
	}
	if res.Succeeded() {
		t.Fatal("result with errors must not report success")
	}
}

func TestBag_Limit(t *testing.T) {
	bag := NewBag(1)
	if !bag.Add(NewError(CodegenUnimplemented, source.Span{}, "a")) {
		t.Fatal("first add must succeed")
	}
	if bag.Add(NewError(CodegenUnimplemented, source.Span{}, "b")) {
		t.Fatal("second add must be dropped")
	}
}

func TestReportBuilder_EmitsOnce(t *testing.T) {
	bag := NewBag(0)
	b := ReportError(BagReporter{Bag: bag}, CodegenUnimplemented, source.Span{}, "x")
	b.Emit()
	b.Emit()
	if bag.Len() != 1 {
		t.Fatalf("expected exactly one diagnostic, got %d", bag.Len())
	}
}

func TestDedup(t *testing.T) {
	bag := NewBag(0)
	r := Dedup(BagReporter{Bag: bag})
	sp := source.Span{File: 0, Start: 5, End: 9}
	r.Report(CodegenTooFewArguments, SevError, sp, "m", nil)
	r.Report(CodegenTooFewArguments, SevError, sp, "m", nil)
	r.Report(CodegenTooFewArguments, SevError, source.Span{Start: 10, End: 12}, "m", nil)
	if bag.Len() != 2 {
		t.Fatalf("want the repeat suppressed and the second site kept, got %d", bag.Len())
	}
}

func TestCode_InternalClass(t *testing.T) {
	if CodegenUnimplemented.IsInternal() {
		t.Fatal("unimplemented is a user-facing code")
	}
	if !InternalFieldNotFound.IsInternal() {
		t.Fatal("field-not-found must be internal")
	}
	if got := InternalFieldNotFound.ID(); got != "ICE9002" {
		t.Fatalf("unexpected id %q", got)
	}
}
