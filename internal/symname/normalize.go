// Package symname turns symbol table names into readable function names.
package symname

import (
	"regexp"
	"strings"

	"github.com/ianlancetaylor/demangle"

	"github.com/isseis/go-manifest-producer/internal/dwarflang"
)

// rustHashSuffix matches the disambiguating hash legacy Rust mangling appends.
var rustHashSuffix = regexp.MustCompile(`::h[0-9a-f]{16}$`)

// Normalize returns the display name of a symbol in a binary whose dominant
// language is lang. Names that are not mangled, or fail to demangle, are
// returned unchanged.
func Normalize(name string, lang dwarflang.Language) string {
	family := lang.Family()

	if family == dwarflang.FamilyGo {
		// Assembly functions carry an ABI suffix; the Go name is the same.
		name = strings.TrimSuffix(name, ".abi0")
		name = strings.TrimSuffix(name, ".abiinternal")
		return name
	}

	if !IsMangled(name) {
		return name
	}

	var opts []demangle.Option
	if family == dwarflang.FamilyCPlusPlus {
		opts = append(opts, demangle.NoRust)
	}
	out := demangle.Filter(name, opts...)
	if out == name {
		return name
	}
	if family == dwarflang.FamilyRust || strings.HasPrefix(name, "_ZN") {
		out = rustHashSuffix.ReplaceAllString(out, "")
	}
	return out
}

// IsMangled reports whether name uses Itanium C++ or Rust v0 mangling.
func IsMangled(name string) bool {
	return strings.HasPrefix(name, "_Z") || strings.HasPrefix(name, "_R")
}
