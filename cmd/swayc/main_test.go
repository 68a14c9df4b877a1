package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const scriptYAML = `name: demo
structs:
  - name: Point
    fields: [{name: x, type: u64}, {name: y, type: u64}]
functions:
  - name: sum
    params: [{name: n, type: u64}]
    ret: u64
    body:
      - {let: i, mut: true, value: 0}
      - {let: acc, mut: true, value: 0}
      - while: {lt: [i, n]}
        body:
          - {set: i, value: {add: [i, 1]}}
          - {set: acc, value: {add: [acc, i]}}
      - acc
  - name: main
    entry: true
    ret: u64
    body: {call: sum, args: [4]}
`

const contractYAML = `name: counter
kind: contract
storage:
  - {name: count, type: u64, init: 0}
functions:
  - name: bump
    entry: true
    ret: u64
    body:
      - store: count
        value: {add: [{storage: count}, 1]}
      - {storage: count}
`

// execute runs swayc with args in a fresh command tree.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--color", "off"}, args...))
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func workspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(dir)
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	return dir
}

func TestBuild_WritesBytecodeAndSidecars(t *testing.T) {
	dir := workspace(t, map[string]string{"counter.yaml": contractYAML})
	stdout, stderr, err := execute(t, "build", "counter.yaml", "-o", "out/counter.bin", "--emit", "abi,asm", "--no-cache")
	if err != nil {
		t.Fatalf("build: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "built out/counter.bin") {
		t.Errorf("stdout = %q", stdout)
	}
	code, err := os.ReadFile(filepath.Join(dir, "out", "counter.bin"))
	if err != nil || len(code) == 0 {
		t.Fatalf("bytecode: %v (%d bytes)", err, len(code))
	}

	raw, err := os.ReadFile(filepath.Join(dir, "out", "counter.abi.json"))
	if err != nil {
		t.Fatal(err)
	}
	var abi abiFile
	if err := json.Unmarshal(raw, &abi); err != nil {
		t.Fatal(err)
	}
	if abi.Kind != "contract" || len(abi.Selectors) != 1 || abi.Selectors[0].Name != "bump" {
		t.Errorf("abi = %+v", abi)
	}
	if len(abi.Storage) != 1 {
		t.Errorf("storage slots = %d, want 1", len(abi.Storage))
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "counter.asm")); err != nil {
		t.Error(err)
	}

	stdout, _, err = execute(t, "disasm", "out/counter.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "000000  ") {
		t.Errorf("disassembly starts with %q", firstLine(stdout))
	}
}

func TestBuild_UsesManifest(t *testing.T) {
	dir := workspace(t, map[string]string{
		"prog.yaml": scriptYAML,
		"swayc.toml": `[package]
name = "demo"
entry = "prog.yaml"

[build]
passes = ["dce"]
cache = false
`,
	})
	if _, stderr, err := execute(t, "build"); err != nil {
		t.Fatalf("build: %v\n%s", err, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "demo.bin")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", ".cache")); err == nil {
		t.Error("cache = false still wrote the artifact cache")
	}
}

func TestBuild_CacheAndClean(t *testing.T) {
	dir := workspace(t, map[string]string{"prog.yaml": scriptYAML})
	for range 2 {
		if _, stderr, err := execute(t, "build", "prog.yaml"); err != nil {
			t.Fatalf("build: %v\n%s", err, stderr)
		}
	}
	entries, err := filepath.Glob(filepath.Join(dir, "cache", "swayc", "artifacts", "*.mp"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("cache entries = %v (%v), want one", entries, err)
	}
	stdout, _, err := execute(t, "clean")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout, "cleared ") {
		t.Errorf("clean output = %q", stdout)
	}
	if entries, _ := filepath.Glob(filepath.Join(dir, "cache", "swayc", "artifacts", "*.mp")); len(entries) != 0 {
		t.Errorf("entries survived clean: %v", entries)
	}
}

func TestBuild_ReportsDiagnostics(t *testing.T) {
	workspace(t, map[string]string{"bad.yaml": `functions:
  - name: main
    entry: true
    params: [{name: x, type: u64}]
    ret: u64
    body: [x]
`})
	stdout, _, err := execute(t, "build", "bad.yaml", "--no-cache", "--diagnostics-format", "json")
	if err == nil {
		t.Fatal("expected the build to fail")
	}
	var out struct {
		Count       int `json:"count"`
		Diagnostics []struct {
			Message string `json:"message"`
		} `json:"diagnostics"`
	}
	if err := json.Unmarshal([]byte(stdout), &out); err != nil {
		t.Fatalf("diagnostics are not JSON: %v\n%s", err, stdout)
	}
	if out.Count != 1 || !strings.Contains(out.Diagnostics[0].Message, "parameters of script entry main") {
		t.Errorf("diagnostics = %+v", out)
	}
}

func TestBuild_DecodeErrorNamesLine(t *testing.T) {
	workspace(t, map[string]string{"bad.yaml": "functions:\n  - name: main\n    body: [missing]\n"})
	_, stderr, err := execute(t, "build", "bad.yaml", "--no-cache")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(stderr, "bad.yaml:3:") {
		t.Errorf("stderr lacks the line: %q", stderr)
	}
}

func TestIR_RunAndPrint(t *testing.T) {
	workspace(t, map[string]string{"prog.yaml": scriptYAML})
	stdout, stderr, err := execute(t, "ir", "prog.yaml", "--opt", "--run", "sum", "--arg", "4")
	if err != nil {
		t.Fatalf("ir: %v\n%s", err, stderr)
	}
	if strings.TrimSpace(stdout) != "sum = [10]" {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = execute(t, "ir", "prog.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "fn sum(") {
		t.Errorf("IR lacks sum:\n%s", stdout)
	}
}

func TestAsm(t *testing.T) {
	workspace(t, map[string]string{"prog.yaml": scriptYAML})
	stdout, stderr, err := execute(t, "asm", "prog.yaml", "--passes", "simplify-cfg,dce")
	if err != nil {
		t.Fatalf("asm: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "fn.sum") {
		t.Errorf("assembly lacks the sum label:\n%s", stdout)
	}
	if _, _, err := execute(t, "asm", "prog.yaml", "--passes", "inline"); err == nil || !strings.Contains(err.Error(), "unknown pass") {
		t.Errorf("unknown pass error = %v", err)
	}
}

func TestLayout(t *testing.T) {
	workspace(t, map[string]string{"prog.yaml": scriptYAML})
	stdout, _, err := execute(t, "layout", "prog.yaml", "Point")
	if err != nil {
		t.Fatal(err)
	}
	want := "Point: 2 words (16 bytes)\n  x  u64  +0  1\n  y  u64  +1  1\n"
	if stdout != want {
		t.Errorf("layout =\n%s\nwant\n%s", stdout, want)
	}
	if _, _, err := execute(t, "layout", "prog.yaml", "Nope"); err == nil {
		t.Error("expected an unknown type error")
	}
}

func TestBuild_Profiles(t *testing.T) {
	dir := workspace(t, map[string]string{"prog.yaml": scriptYAML})
	_, stderr, err := execute(t, "--cpu-profile", "cpu.pprof", "--mem-profile", "mem.pprof",
		"--trace", "trace.ndjson", "--trace-level", "pass", "build", "prog.yaml", "--no-cache")
	if err != nil {
		t.Fatalf("build: %v\n%s", err, stderr)
	}
	for _, name := range []string{"cpu.pprof", "mem.pprof"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Error(err)
		}
	}
	raw, err := os.ReadFile(filepath.Join(dir, "trace.ndjson"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"name":"irgen"`) || !strings.Contains(string(raw), `"scope":"pass"`) {
		t.Errorf("trace lacks stage or pass events:\n%s", raw)
	}
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var p versionPayload
	if err := json.Unmarshal([]byte(stdout), &p); err != nil {
		t.Fatal(err)
	}
	if p.Tool != "swayc" || p.Version == "" {
		t.Errorf("payload = %+v", p)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
