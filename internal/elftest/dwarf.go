package elftest

import "encoding/binary"

// DWARF constants for a minimal version 4 compile unit.
const (
	dwTagCompileUnit = 0x11
	dwChildrenNo     = 0x00
	dwAtName         = 0x03
	dwAtLanguage     = 0x13
	dwFormData2      = 0x05
	dwFormString     = 0x08
	dwarfVersion     = 4
	addrSize         = 8
)

// debugAbbrev returns an abbreviation table with one entry: a childless
// compile unit carrying DW_AT_language and DW_AT_name.
func debugAbbrev() []byte {
	return []byte{
		1, dwTagCompileUnit, dwChildrenNo,
		dwAtLanguage, dwFormData2,
		dwAtName, dwFormString,
		0, 0,
		0,
	}
}

// debugInfo returns one compile unit per language code.
func debugInfo(langs []uint16) []byte {
	le := binary.LittleEndian
	var out []byte
	for i, lang := range langs {
		die := []byte{1}
		die = le.AppendUint16(die, lang)
		die = append(die, []byte(unitName(i))...)
		die = append(die, 0)

		// version(2) + abbrev offset(4) + address size(1)
		length := uint32(2 + 4 + 1 + len(die))
		out = le.AppendUint32(out, length)
		out = le.AppendUint16(out, dwarfVersion)
		out = le.AppendUint32(out, 0)
		out = append(out, addrSize)
		out = append(out, die...)
	}
	return out
}

func unitName(i int) string {
	return "unit" + string(rune('a'+i%26)) + ".c"
}
