package vm

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Image format
// ---------------------------------------------------------------------------

// ImageMagic identifies a FOOL image file.
var ImageMagic = [4]byte{'F', 'O', 'O', 'L'}

// Image format version
// v1: initial format
const ImageVersion uint32 = 1

var (
	ErrInvalidMagic    = errors.New("invalid magic number: expected FOOL")
	ErrVersionMismatch = errors.New("image version mismatch")
	ErrCorruptImage    = errors.New("corrupt image data")
)

// Image is an assembled program persisted to disk together with the
// assembly it was built from. The assembly is the source of truth: loading
// an image re-assembles it and checks the result against Code.
type Image struct {
	Version   uint32   `cbor:"1,keyasint"`
	BuildID   string   `cbor:"2,keyasint"`
	Source    string   `cbor:"3,keyasint,omitempty"`
	Asm       []string `cbor:"4,keyasint"`
	Code      []int    `cbor:"5,keyasint"`
	SourceMap []int    `cbor:"6,keyasint,omitempty"`
	MemSize   int      `cbor:"7,keyasint,omitempty"`
	Hash      []byte   `cbor:"8,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// NewImage builds an image for prog. source is the FOOL program text and
// may be empty.
func NewImage(prog *Program, source string, memSize int) *Image {
	return &Image{
		Version:   ImageVersion,
		BuildID:   uuid.New().String(),
		Source:    source,
		Asm:       prog.Lines,
		Code:      prog.Code,
		SourceMap: prog.SourceMap,
		MemSize:   memSize,
		Hash:      asmHash(prog.Text()),
	}
}

func asmHash(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	return sum[:]
}

// Program rebuilds the assembled program stored in the image.
func (img *Image) Program() (*Program, error) {
	text := (&Program{Lines: img.Asm}).Text()
	if !bytes.Equal(asmHash(text), img.Hash) {
		return nil, fmt.Errorf("%w: assembly hash mismatch", ErrCorruptImage)
	}
	prog, err := Assemble(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if len(prog.Code) != len(img.Code) {
		return nil, fmt.Errorf("%w: code length %d, assembly yields %d", ErrCorruptImage, len(img.Code), len(prog.Code))
	}
	for i := range prog.Code {
		if prog.Code[i] != img.Code[i] {
			return nil, fmt.Errorf("%w: code differs at %d", ErrCorruptImage, i)
		}
	}
	return prog, nil
}

// Marshal serializes the image: the magic number followed by the CBOR
// encoded image.
func (img *Image) Marshal() ([]byte, error) {
	body, err := cborEncMode.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("vm: marshal image: %w", err)
	}
	out := make([]byte, 0, len(ImageMagic)+len(body))
	out = append(out, ImageMagic[:]...)
	return append(out, body...), nil
}

// UnmarshalImage deserializes an image produced by Marshal.
func UnmarshalImage(data []byte) (*Image, error) {
	if len(data) < len(ImageMagic) || !bytes.Equal(data[:len(ImageMagic)], ImageMagic[:]) {
		return nil, ErrInvalidMagic
	}
	var img Image
	if err := cbor.Unmarshal(data[len(ImageMagic):], &img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if img.Version != ImageVersion {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrVersionMismatch, ImageVersion, img.Version)
	}
	return &img, nil
}

// WriteImage writes img to w.
func WriteImage(w io.Writer, img *Image) error {
	data, err := img.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ReadImage reads an image from r.
func ReadImage(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return UnmarshalImage(data)
}

// SaveImage writes img to the file at path.
func SaveImage(path string, img *Image) error {
	data, err := img.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	log.Infof("wrote image %s (%d cells, build %s)", path, len(img.Code), img.BuildID)
	return nil
}

// LoadImage reads the image file at path.
func LoadImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadImage(f)
}
