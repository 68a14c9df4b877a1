package trace

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestStreamTracer_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelStage, FormatText)
	ctx := WithTracer(context.Background(), tr)

	sctx, stage := Start(ctx, ScopeStage, "irgen")
	_, pass := Start(sctx, ScopePass, "sroa")
	pass.End("")
	stage.Set("funcs", "3").End("ok")

	out := buf.String()
	if !strings.Contains(out, "irgen (ok)") {
		t.Fatalf("stage span missing:\n%s", out)
	}
	if strings.Contains(out, "sroa") {
		t.Fatalf("pass span must be filtered at stage level:\n%s", out)
	}
	if !strings.Contains(out, "{funcs=3}") {
		t.Fatalf("attribute missing:\n%s", out)
	}
}

func TestStart_NestsUnderCurrentSpan(t *testing.T) {
	ring := NewRingTracer(16, LevelDebug)
	ctx := WithTracer(context.Background(), ring)
	if Current(ctx) != 0 {
		t.Fatal("a fresh context has no current span")
	}
	ctx, root := Start(ctx, ScopeDriver, "build")
	fctx, fn := Start(ctx, ScopeFunction, "main")
	Point(fctx, ScopeFunction, "spill", "r3")
	fn.End("")
	root.End("")

	snap := ring.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("events = %d, want 5", len(snap))
	}
	if snap[1].ParentID != root.ID() || snap[2].ParentID != fn.ID() {
		t.Errorf("parents = %d, %d", snap[1].ParentID, snap[2].ParentID)
	}
	for i := 1; i < len(snap); i++ {
		if snap[i].Seq <= snap[i-1].Seq {
			t.Errorf("sequence not increasing at %d", i)
		}
	}
}

func TestRingTracer_Snapshot(t *testing.T) {
	tr := NewRingTracer(2, LevelDebug)
	ctx := WithTracer(context.Background(), tr)
	for _, name := range []string{"a", "b", "c"} {
		Point(ctx, ScopeFunction, name, "")
	}
	snap := tr.Snapshot()
	if len(snap) != 2 || snap[0].Name != "b" || snap[1].Name != "c" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if tr.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", tr.Dropped())
	}
}

func TestNew_Modes(t *testing.T) {
	var buf bytes.Buffer
	tr, err := New(Config{Level: LevelPass, Mode: ModeBoth, Output: &buf, RingSize: 8})
	if err != nil {
		t.Fatal(err)
	}
	ring, ok := Ring(tr)
	if !ok {
		t.Fatal("both mode must include a ring")
	}
	Begin(tr, ScopePass, "dce", 0).End("")
	if len(ring.Snapshot()) != 2 || !strings.Contains(buf.String(), "dce") {
		t.Errorf("ring=%d stream=%q", len(ring.Snapshot()), buf.String())
	}

	if tr, _ := New(Config{Level: LevelOff}); tr != Nop {
		t.Error("level off must yield Nop")
	}
	if _, err := New(Config{Level: LevelStage}); err == nil {
		t.Error("missing mode must fail")
	}
}

func TestContextDefaults(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatal("missing tracer must default to Nop")
	}
	ctx, s := Start(context.Background(), ScopeStage, "x")
	if s != nil || Current(ctx) != 0 {
		t.Fatal("spans without a tracer are disabled")
	}
	s.End("")
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"off", "stage", "PASS", "debug"} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLevel("phase"); err == nil {
		t.Error("unknown level must fail")
	}
}
