package elfanalyzer

import "strings"

// Match pairs a requested API name with the function chosen for it.
type Match struct {
	API      string   `json:"api"`
	Function Function `json:"function"`
}

// MatchAPIs finds, for each requested name, the first function in discovery
// order whose normalized name contains it. Matching is case sensitive.
// Names without a candidate are returned in unmatched, in request order.
func MatchAPIs(funcs []Function, apis []string) (matches []Match, unmatched []string) {
	for _, api := range apis {
		fn, ok := firstContaining(funcs, api)
		if !ok {
			unmatched = append(unmatched, api)
			continue
		}
		matches = append(matches, Match{API: api, Function: fn})
	}
	return matches, unmatched
}

func firstContaining(funcs []Function, api string) (Function, bool) {
	if api == "" {
		return Function{}, false
	}
	for _, fn := range funcs {
		if strings.Contains(fn.Name, api) {
			return fn, true
		}
	}
	return Function{}, false
}
