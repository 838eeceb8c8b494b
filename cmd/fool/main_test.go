package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const dispatchProgram = `
let
  class Animal () { fun sound:int () 0; }
  class Dog extends Animal () { fun sound:int () 1; }
  var a:Animal = new Dog();
in print(a.sound());
`

func TestRunSource(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dog.fool", dispatchProgram)
	code, out, errOut := runCLI(path)
	if code != exitOK {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "1\n" {
		t.Errorf("printed %q, want 1", out)
	}
}

func TestCompileErrorsExitOne(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.fool", "let fun f:int (a:int) a; in f(true, 2);")
	code, out, errOut := runCLI(path)
	if code != exitCompile {
		t.Errorf("exit %d, want %d", code, exitCompile)
	}
	if out != "" {
		t.Errorf("compile failure printed %q", out)
	}
	if !strings.Contains(errOut, "Type error at line 1") || !strings.Contains(errOut, "compilation stopped") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestRuntimeErrorExitsTwo(t *testing.T) {
	path := writeFile(t, t.TempDir(), "div.fool", "print(1 / 0);")
	code, _, errOut := runCLI(path)
	if code != exitRuntime {
		t.Errorf("exit %d, want %d", code, exitRuntime)
	}
	if !strings.Contains(errOut, "division by zero") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestShowAsm(t *testing.T) {
	path := writeFile(t, t.TempDir(), "p.fool", "print(1 + 2);")
	code, out, _ := runCLI("-S", path)
	if code != exitOK {
		t.Fatalf("exit %d", code)
	}
	if out != "push 1\npush 2\nadd\nprint\nhalt\n" {
		t.Errorf("assembly = %q", out)
	}
}

func TestShowAST(t *testing.T) {
	path := writeFile(t, t.TempDir(), "p.fool", "let var x:int = 1; in x;")
	code, out, _ := runCLI("-ast", path)
	if code != exitOK {
		t.Fatalf("exit %d", code)
	}
	if !strings.HasPrefix(out, "ProgLetIn\n") {
		t.Errorf("AST = %q", out)
	}
}

func TestCheckOnly(t *testing.T) {
	path := writeFile(t, t.TempDir(), "p.fool", "print(5);")
	code, out, _ := runCLI("-check", path)
	if code != exitOK || out != "" {
		t.Errorf("exit %d, output %q; -check must not run the program", code, out)
	}
}

func TestAsmRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "p.fool", "let var x:int = 5; in print(x + 1);")
	asm := filepath.Join(dir, "p.asm")

	if code, _, errOut := runCLI("-o", asm, src); code != exitOK {
		t.Fatalf("compile to asm: exit %d: %s", code, errOut)
	}
	code, out, errOut := runCLI("-asm", asm)
	if code != exitOK {
		t.Fatalf("run asm: exit %d: %s", code, errOut)
	}
	if out != "6\n" {
		t.Errorf("printed %q, want 6", out)
	}
}

func TestAsmRunsWithAnyMemory(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "dog.fool", dispatchProgram)
	asm := filepath.Join(dir, "dog.asm")

	if code, _, errOut := runCLI("-o", asm, src); code != exitOK {
		t.Fatalf("compile to asm: exit %d: %s", code, errOut)
	}
	for _, mem := range []string{"1000", "20000"} {
		code, out, errOut := runCLI("-mem", mem, "-asm", asm)
		if code != exitOK {
			t.Fatalf("-mem %s: exit %d: %s", mem, code, errOut)
		}
		if out != "1\n" {
			t.Errorf("-mem %s: printed %q, want 1", mem, out)
		}
	}
}

func TestImageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "dog.fool", dispatchProgram)
	img := filepath.Join(dir, "dog"+imageExt)

	if code, _, errOut := runCLI("-mem", "2000", "-o", img, src); code != exitOK {
		t.Fatalf("compile to image: exit %d: %s", code, errOut)
	}
	// The image carries its memory size; -mem is ignored.
	code, out, errOut := runCLI("-mem", "50000", "-image", img)
	if code != exitOK {
		t.Fatalf("run image: exit %d: %s", code, errOut)
	}
	if out != "1\n" {
		t.Errorf("printed %q, want 1", out)
	}
}

func TestBadImage(t *testing.T) {
	path := writeFile(t, t.TempDir(), "junk"+imageExt, "not an image")
	if code, _, errOut := runCLI("-image", path); code != exitCompile || !strings.Contains(errOut, "invalid magic") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}

func TestMissingFile(t *testing.T) {
	if code, _, _ := runCLI(filepath.Join(t.TempDir(), "none.fool")); code != exitCompile {
		t.Errorf("exit %d, want %d", code, exitCompile)
	}
}

func TestUnknownFlag(t *testing.T) {
	if code, _, _ := runCLI("-nope"); code != exitCompile {
		t.Errorf("exit %d, want %d", code, exitCompile)
	}
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.fool", "print(40 + 2);")
	writeFile(t, dir, "fool.toml", `
[project]
name = "answer"

[build]
asm = "out/answer.asm"
image = "out/answer.img"

[vm]
memory = 1000
`)

	if code, _, errOut := runCLI("build", "-C", dir); code != exitOK {
		t.Fatalf("build: exit %d: %s", code, errOut)
	}

	asm, err := os.ReadFile(filepath.Join(dir, "out", "answer.asm"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(asm), "push 40\npush 2\nadd\nprint\nhalt\n") {
		t.Errorf("assembly = %q", asm)
	}

	code, out, errOut := runCLI("-image", filepath.Join(dir, "out", "answer.img"))
	if code != exitOK {
		t.Fatalf("run image: exit %d: %s", code, errOut)
	}
	if out != "42\n" {
		t.Errorf("printed %q, want 42", out)
	}
}

func TestBuildWithoutManifest(t *testing.T) {
	code, _, errOut := runCLI("build", "-C", t.TempDir())
	if code != exitCompile || !strings.Contains(errOut, "no fool.toml") {
		t.Errorf("exit %d, stderr %q", code, errOut)
	}
}
