package vm

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

// countdown keeps its counter in memory cell 0 and prints 3, 2, 1.
const countdown = `push 3
push 0
sw
loop:
push 0
lw
print
push 1
sub
push 0
sw
push 0
lw
push 0
beq end
b loop
end:
halt
`

func assembleCountdown(t *testing.T) *Program {
	t.Helper()
	prog, err := Assemble(countdown)
	if err != nil {
		t.Fatal(err)
	}
	return prog
}

func TestImageRoundTrip(t *testing.T) {
	prog := assembleCountdown(t)
	img := NewImage(prog, "print(3);", 512)

	var buf bytes.Buffer
	if err := WriteImage(&buf, img); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), ImageMagic[:]) {
		t.Fatalf("image does not start with the magic number")
	}

	loaded, err := ReadImage(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.BuildID != img.BuildID || loaded.Source != img.Source || loaded.MemSize != 512 {
		t.Errorf("loaded header = %+v", loaded)
	}

	restored, err := loaded.Program()
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	if err := New(Config{MemSize: loaded.MemSize, Output: &out}).Run(restored); err != nil {
		t.Fatal(err)
	}
	if out.String() != "3\n2\n1\n" {
		t.Errorf("restored program printed %q", out.String())
	}
}

func TestImageEncodingIsDeterministic(t *testing.T) {
	img := NewImage(assembleCountdown(t), "", 0)
	a, err := img.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	b, err := img.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two encodings of the same image differ")
	}
}

func TestImageBuildIDsDiffer(t *testing.T) {
	prog := assembleCountdown(t)
	if NewImage(prog, "", 0).BuildID == NewImage(prog, "", 0).BuildID {
		t.Error("two builds share a build ID")
	}
}

func TestImageTamperedAssembly(t *testing.T) {
	img := NewImage(assembleCountdown(t), "", 0)
	img.Asm = append([]string{"push 4"}, img.Asm[1:]...)
	if _, err := img.Program(); !errors.Is(err, ErrCorruptImage) {
		t.Errorf("err = %v, want %v", err, ErrCorruptImage)
	}
}

func TestImageTamperedCode(t *testing.T) {
	img := NewImage(assembleCountdown(t), "", 0)
	code := append([]int(nil), img.Code...)
	code[1] = 4
	img.Code = code
	if _, err := img.Program(); !errors.Is(err, ErrCorruptImage) {
		t.Errorf("err = %v, want %v", err, ErrCorruptImage)
	}
}

func TestImageBadMagic(t *testing.T) {
	if _, err := UnmarshalImage([]byte("MAGI....")); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("err = %v, want %v", err, ErrInvalidMagic)
	}
	if _, err := UnmarshalImage(nil); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("err = %v, want %v", err, ErrInvalidMagic)
	}
}

func TestImageCorruptBody(t *testing.T) {
	data := append(ImageMagic[:], 0xff, 0x00)
	if _, err := UnmarshalImage(data); !errors.Is(err, ErrCorruptImage) {
		t.Errorf("err = %v, want %v", err, ErrCorruptImage)
	}
}

func TestImageVersionMismatch(t *testing.T) {
	img := NewImage(assembleCountdown(t), "", 0)
	img.Version = ImageVersion + 1
	data, err := img.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalImage(data); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("err = %v, want %v", err, ErrVersionMismatch)
	}
}

func TestSaveLoadImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countdown.fimg")
	img := NewImage(assembleCountdown(t), "", 0)
	if err := SaveImage(path, img); err != nil {
		t.Fatal(err)
	}
	loaded, err := LoadImage(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loaded.Program(); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadImage(filepath.Join(t.TempDir(), "missing.fimg")); err == nil {
		t.Error("LoadImage of a missing file succeeded")
	}
}
