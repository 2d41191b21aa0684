// Package dwarflang determines the dominant source language of a binary from
// the DW_AT_language attribute of its DWARF compile units.
package dwarflang

import "fmt"

// Language is a DWARF source language code (DW_LANG_*).
type Language int64

// Languages with dedicated handling, plus the C family members that the
// Rust rule discards.
const (
	Unknown     Language = 0
	C89         Language = 0x01
	C           Language = 0x02
	CPlusPlus   Language = 0x04
	C99         Language = 0x0c
	Go          Language = 0x16
	CPlusPlus03 Language = 0x19
	CPlusPlus11 Language = 0x1a
	Rust        Language = 0x1c
	C11         Language = 0x1d
	CPlusPlus14 Language = 0x21
	CPlusPlus17 Language = 0x2a
	CPlusPlus20 Language = 0x2b
	C17         Language = 0x2c
)

// names maps codes to DW_LANG_ names without the prefix.
var names = map[Language]string{
	0x01:   "C89",
	0x02:   "C",
	0x03:   "Ada83",
	0x04:   "C_plus_plus",
	0x05:   "Cobol74",
	0x06:   "Cobol85",
	0x07:   "Fortran77",
	0x08:   "Fortran90",
	0x09:   "Pascal83",
	0x0a:   "Modula2",
	0x0b:   "Java",
	0x0c:   "C99",
	0x0d:   "Ada95",
	0x0e:   "Fortran95",
	0x0f:   "PLI",
	0x10:   "ObjC",
	0x11:   "ObjC_plus_plus",
	0x12:   "UPC",
	0x13:   "D",
	0x14:   "Python",
	0x15:   "OpenCL",
	0x16:   "Go",
	0x17:   "Modula3",
	0x18:   "Haskell",
	0x19:   "C_plus_plus_03",
	0x1a:   "C_plus_plus_11",
	0x1b:   "OCaml",
	0x1c:   "Rust",
	0x1d:   "C11",
	0x1e:   "Swift",
	0x1f:   "Julia",
	0x20:   "Dylan",
	0x21:   "C_plus_plus_14",
	0x22:   "Fortran03",
	0x23:   "Fortran08",
	0x24:   "RenderScript",
	0x25:   "BLISS",
	0x26:   "Kotlin",
	0x27:   "Zig",
	0x28:   "Crystal",
	0x2a:   "C_plus_plus_17",
	0x2b:   "C_plus_plus_20",
	0x2c:   "C17",
	0x2d:   "Fortran18",
	0x2e:   "Ada2005",
	0x2f:   "Ada2012",
	0x8001: "Mips_Assembler",
}

// Family groups language versions that share mangling and calling patterns.
type Family int

const (
	FamilyOther Family = iota
	FamilyC
	FamilyCPlusPlus
	FamilyRust
	FamilyGo
)

func (f Family) String() string {
	switch f {
	case FamilyC:
		return "c"
	case FamilyCPlusPlus:
		return "c++"
	case FamilyRust:
		return "rust"
	case FamilyGo:
		return "go"
	default:
		return "other"
	}
}

// Known reports whether l has a DW_LANG_ name.
func (l Language) Known() bool {
	_, ok := names[l]
	return ok
}

// String returns the DW_LANG_ name without its prefix.
func (l Language) String() string {
	if name, ok := names[l]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%x)", int64(l))
}

// Family returns the language family of l.
func (l Language) Family() Family {
	switch l {
	case C89, C, C99, C11, C17:
		return FamilyC
	case CPlusPlus, CPlusPlus03, CPlusPlus11, CPlusPlus14, CPlusPlus17, CPlusPlus20:
		return FamilyCPlusPlus
	case Rust:
		return FamilyRust
	case Go:
		return FamilyGo
	default:
		return FamilyOther
	}
}
