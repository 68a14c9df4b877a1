package observ

import (
	"strings"
	"testing"
)

func TestTimer_Summary(t *testing.T) {
	tm := NewTimer()
	tm.Measure("irgen", func() {})
	idx := tm.Begin("finalize")
	tm.End(idx, "12 ops")

	rep := tm.Report()
	if len(rep.Phases) != 2 {
		t.Fatalf("phases = %d", len(rep.Phases))
	}
	out := tm.Summary()
	for _, want := range []string{"irgen", "finalize", "// 12 ops", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestTimer_NilSafe(t *testing.T) {
	var tm *Timer
	tm.End(tm.Begin("x"), "")
	if len(tm.Report().Phases) != 0 {
		t.Fatal("nil timer must report nothing")
	}
}
