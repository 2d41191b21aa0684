package dwarflang

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"log/slog"
)

// Static errors
var (
	// ErrNoDebugInfo indicates the binary has no readable DWARF data.
	ErrNoDebugInfo = errors.New("no DWARF debug information")

	// ErrLanguageNotFound indicates no compile unit carries a recognized
	// DW_AT_language attribute.
	ErrLanguageNotFound = errors.New("source language not found in debug information")
)

// Count is the number of compile units declaring one language.
type Count struct {
	Language Language
	Units    int
}

// Classify returns the dominant source language of f.
func Classify(f *elf.File) (Language, error) {
	d, err := f.DWARF()
	if err != nil {
		return Unknown, fmt.Errorf("%w: %v", ErrNoDebugInfo, err)
	}
	counts, err := Tally(d)
	if err != nil {
		return Unknown, err
	}
	lang, err := Decide(counts)
	if err != nil {
		return Unknown, err
	}
	slog.Debug("Source language classified",
		slog.String("language", lang.String()),
		slog.Int("languages_seen", len(counts)))
	return lang, nil
}

// Tally counts DW_AT_language across compile units in first-seen order.
// Units without the attribute are skipped.
func Tally(d *dwarf.Data) ([]Count, error) {
	var counts []Count
	index := make(map[Language]int)

	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoDebugInfo, err)
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit && entry.Tag != dwarf.TagPartialUnit {
			continue
		}
		r.SkipChildren()

		lang, ok := languageOf(entry)
		if !ok {
			continue
		}
		if i, seen := index[lang]; seen {
			counts[i].Units++
			continue
		}
		index[lang] = len(counts)
		counts = append(counts, Count{Language: lang, Units: 1})
	}
	return counts, nil
}

// Decide picks the recognized language with the most compile units; ties go
// to the language seen first. Unrecognized codes only matter when no unit has
// a recognized language. When Rust is present, C family entries are dropped
// first: they come from the C runtime objects the Rust toolchain links in.
func Decide(counts []Count) (Language, error) {
	hasRust := false
	for _, c := range counts {
		if c.Language == Rust {
			hasRust = true
			break
		}
	}

	best := Count{Language: Unknown}
	unrecognized := Count{Language: Unknown}
	for _, c := range counts {
		if hasRust && c.Language.Family() == FamilyC {
			continue
		}
		if !c.Language.Known() {
			if c.Units > unrecognized.Units {
				unrecognized = c
			}
			continue
		}
		if c.Units > best.Units {
			best = c
		}
	}

	if best.Units > 0 {
		return best.Language, nil
	}
	if unrecognized.Units > 0 {
		return Unknown, fmt.Errorf("%w: unrecognized language code 0x%x", ErrLanguageNotFound, int64(unrecognized.Language))
	}
	return Unknown, ErrLanguageNotFound
}

func languageOf(entry *dwarf.Entry) (Language, bool) {
	switch v := entry.Val(dwarf.AttrLanguage).(type) {
	case int64:
		return Language(v), true
	case uint64:
		return Language(v), true
	default:
		return Unknown, false
	}
}
