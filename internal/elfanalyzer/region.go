package elfanalyzer

import (
	"debug/elf"
	"fmt"
	"log/slog"

	"github.com/isseis/go-manifest-producer/internal/elfimage"
)

// RegionResolver maps function address ranges to code bytes and exposes the
// import table of dynamically linked images.
//
// All addresses are link-time virtual addresses, the space shared by symbol
// values and section headers. For a PIE this is the image mapped at load
// bias zero, so no bias is applied when reading from the file.
type RegionResolver struct {
	static   bool
	sections []*elf.Section
	imports  *ImportTable
}

// NewRegionResolver prepares code lookups for img. For dynamically linked
// images the PLT and relocation tables are decoded up front.
func NewRegionResolver(img *elfimage.Image) (*RegionResolver, error) {
	f := img.File()
	r := &RegionResolver{
		static:  img.IsStatic(),
		imports: newImportTable(),
	}

	for _, s := range f.Sections {
		if s.Type == elf.SHT_NOBITS {
			continue
		}
		if s.Flags&elf.SHF_ALLOC == 0 || s.Flags&elf.SHF_EXECINSTR == 0 {
			continue
		}
		r.sections = append(r.sections, s)
	}

	if !r.static {
		imports, err := loadImportTable(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read import table: %w", err)
		}
		r.imports = imports
		slog.Debug("Import table loaded",
			slog.Bool("pie", img.IsPositionIndependent()),
			slog.Int("stubs", len(imports.stubs)),
			slog.Int("slots", len(imports.slots)))
	}
	return r, nil
}

// Static reports whether calls can only target local code.
func (r *RegionResolver) Static() bool { return r.static }

// Imports returns the import table; it is empty for static images.
func (r *RegionResolver) Imports() *ImportTable { return r.imports }

// Code returns the bytes of fn. A zero-size function yields an empty slice.
func (r *RegionResolver) Code(fn Function) ([]byte, error) {
	if fn.End < fn.Start {
		return nil, &RegionError{Function: fn.Name, Start: fn.Start, End: fn.End,
			Cause: fmt.Errorf("end before start")}
	}
	if fn.Size() == 0 {
		return []byte{}, nil
	}

	for _, s := range r.sections {
		if fn.Start < s.Addr || fn.End > s.Addr+s.Size {
			continue
		}
		code := make([]byte, fn.Size())
		if _, err := s.ReadAt(code, int64(fn.Start-s.Addr)); err != nil { //nolint:gosec // G115: offset bounded by section size
			return nil, &RegionError{Function: fn.Name, Start: fn.Start, End: fn.End,
				Cause: fmt.Errorf("read %s: %w", s.Name, err)}
		}
		return code, nil
	}
	return nil, &RegionError{Function: fn.Name, Start: fn.Start, End: fn.End, Cause: ErrRegionOutsideSections}
}
