// Package apilist reads the list of API names a manifest run is asked about.
//
// The file is a JSON array of strings:
//
//	["turnLampOn", "turnLampOff", "accessNetwork"]
package apilist

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/isseis/go-manifest-producer/internal/safefileio"
)

// Static errors for list validation.
var (
	ErrEmptyName = errors.New("API list contains an empty name")
	ErrEmptyList = errors.New("API list is empty")
)

// Load reads the API list at path.
func Load(path string) ([]string, error) {
	data, err := safefileio.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read API list %s: %w", path, err)
	}
	names, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return names, nil
}

// Parse decodes a JSON array of names. Duplicates are dropped, keeping the
// first occurrence.
func Parse(data []byte) ([]string, error) {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid API list: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyList
	}
	for i, name := range raw {
		if name == "" {
			return nil, fmt.Errorf("%w at index %d", ErrEmptyName, i)
		}
	}
	return Merge(raw), nil
}

// Merge concatenates lists, dropping repeated names.
func Merge(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
