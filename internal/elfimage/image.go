package elfimage

import (
	"crypto/sha256"
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"

	"github.com/isseis/go-manifest-producer/internal/safefileio"
)

// Image is a read-only view of one ELF executable. Linkage facts are computed
// once at load time.
type Image struct {
	path   string
	size   int64
	digest string
	file   *elf.File
	closer io.Closer

	static   bool
	pie      bool
	stripped bool
}

// Info summarizes an Image for reporting.
type Info struct {
	Path      string `json:"path"`
	Name      string `json:"file_name"`
	Size      int64  `json:"size"`
	SHA256    string `json:"sha256"`
	Class     string `json:"class"`
	Machine   string `json:"machine"`
	Type      string `json:"type"`
	ByteOrder string `json:"byte_order"`
	Entry     uint64 `json:"entry"`
	Static    bool   `json:"static"`
	PIE       bool   `json:"pie"`
	Stripped  bool   `json:"stripped"`
}

// Open loads the ELF file at path. Symlinks are rejected. The caller must
// call Close on the returned image.
func Open(path string) (*Image, error) {
	f, size, err := safefileio.OpenBinary(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	img, err := NewImage(f, size)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	img.path = path
	img.closer = f
	return img, nil
}

// NewImage builds an Image from size bytes readable through r. Close does not
// close r.
func NewImage(r io.ReaderAt, size int64) (*Image, error) {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(r, 0, size)); err != nil {
		return nil, fmt.Errorf("failed to hash binary: %w", err)
	}

	ef, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	return &Image{
		size:     size,
		digest:   hex.EncodeToString(h.Sum(nil)),
		file:     ef,
		static:   isStatic(ef),
		pie:      ef.Type == elf.ET_DYN,
		stripped: isStripped(ef),
	}, nil
}

// Close releases the underlying file. It is safe to call more than once.
func (i *Image) Close() error {
	if i.closer == nil {
		return nil
	}
	err := i.closer.Close()
	i.closer = nil
	return err
}

// File returns the parsed ELF file. Callers must not retain it after Close.
func (i *Image) File() *elf.File { return i.file }

// Path returns the path the image was opened from, or "" for in-memory images.
func (i *Image) Path() string { return i.path }

// Size returns the file size in bytes.
func (i *Image) Size() int64 { return i.size }

// Digest returns the hex encoded SHA-256 of the file contents.
func (i *Image) Digest() string { return i.digest }

// IsStripped reports whether the symbol table or DWARF info is missing.
func (i *Image) IsStripped() bool { return i.stripped }

// IsStatic reports whether the binary has no dynamic linker interpreter.
func (i *Image) IsStatic() bool { return i.static }

// IsPositionIndependent reports whether the ELF type is ET_DYN (PIE or
// shared object).
func (i *Image) IsPositionIndependent() bool { return i.pie }

// Machine returns the ELF machine type.
func (i *Image) Machine() elf.Machine { return i.file.Machine }

// ByteOrder returns the byte order of the image.
func (i *Image) ByteOrder() binary.ByteOrder { return i.file.ByteOrder }

// Entry returns the entry point virtual address.
func (i *Image) Entry() uint64 { return i.file.Entry }

// RequireMachine returns an UnsupportedArchitectureError unless the image
// targets one of the given machines.
func (i *Image) RequireMachine(machines ...elf.Machine) error {
	for _, m := range machines {
		if i.file.Machine == m {
			return nil
		}
	}
	return &UnsupportedArchitectureError{Machine: i.file.Machine}
}

// Info returns a summary of the image.
func (i *Image) Info() Info {
	order := "little-endian"
	if i.file.Data == elf.ELFDATA2MSB {
		order = "big-endian"
	}
	name := ""
	if i.path != "" {
		name = filepath.Base(i.path)
	}
	return Info{
		Path:      i.path,
		Name:      name,
		Size:      i.size,
		SHA256:    i.digest,
		Class:     i.file.Class.String(),
		Machine:   i.file.Machine.String(),
		Type:      i.file.Type.String(),
		ByteOrder: order,
		Entry:     i.file.Entry,
		Static:    i.static,
		PIE:       i.pie,
		Stripped:  i.stripped,
	}
}

func isStatic(f *elf.File) bool {
	for _, p := range f.Progs {
		if p.Type == elf.PT_INTERP {
			return false
		}
	}
	return f.Section(".interp") == nil
}

func isStripped(f *elf.File) bool {
	if f.Section(".symtab") == nil {
		return true
	}
	return f.Section(".debug_info") == nil && f.Section(".zdebug_info") == nil
}
