// Package keyword implements the query preprocessing stage: tokenization,
// proper-noun detection, and built-in synonym expansion.
package keyword

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/ctxfabric/retrieval-engine/pkg/types"
)

// synonyms is the built-in expansion map. Keys are stems matched against a
// lowercased token with t == b || strings.HasPrefix(t, b); see DESIGN.md
// "Open Question decisions" #2 for why the prefix rule is implemented
// literally.
var synonyms = map[string][]string{
	"install":  {"install", "setup", "installation", "pip", "npm", "brew"},
	"package":  {"package", "library", "module", "dependency", "import"},
	"error":    {"error", "exception", "bug", "issue", "problem", "fail"},
	"function": {"function", "method", "def", "procedure", "func"},
	"api":      {"api", "endpoint", "service", "interface", "rest"},
	"database": {"database", "db", "storage", "postgres", "sql"},
}

// synonymStems is synonyms' keys in a fixed order so expansion lookup is
// deterministic regardless of map iteration order.
var synonymStems = func() []string {
	stems := make([]string, 0, len(synonyms))
	for k := range synonyms {
		stems = append(stems, k)
	}
	sort.Strings(stems)
	return stems
}()

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// Analyze turns a raw query string into a Fingerprint. Returns
// types.ErrInvalidQuery when no token of length >= 2 survives tokenization.
func Analyze(query string) (*types.Fingerprint, error) {
	rawTokens := tokenPattern.FindAllString(query, -1)

	keywords := make([]types.Keyword, 0, len(rawTokens))
	seen := make(map[string]bool, len(rawTokens))
	expanded := make(map[string]float64)

	for _, raw := range rawTokens {
		if len(raw) < 2 {
			continue
		}
		term := strings.ToLower(raw)
		if seen[term] {
			continue
		}
		seen[term] = true

		properNoun := isProperNoun(raw)
		group := synonymGroup(term, properNoun)

		kw := types.Keyword{
			Term:         term,
			Weight:       types.Weight(term),
			IsProperNoun: properNoun,
			SynonymGroup: group,
		}
		keywords = append(keywords, kw)

		for _, syn := range group {
			if w, ok := expanded[syn]; !ok || w == 0 {
				expanded[syn] = types.Weight(syn)
			}
		}
	}

	if len(keywords) == 0 {
		return nil, fmt.Errorf("%w: %q yields no keyword of length >= 2", types.ErrInvalidQuery, query)
	}

	fp := &types.Fingerprint{
		Query:    query,
		Keywords: keywords,
		Expanded: expanded,
	}
	fp.Longest, fp.TotalWeight = longestAndTotal(keywords)
	return fp, nil
}

// isProperNoun reports whether raw (as it appeared in the original query,
// before lowercasing) begins with an uppercase letter. See DESIGN.md "Open
// Question decisions" #3.
func isProperNoun(raw string) bool {
	for _, r := range raw {
		return unicode.IsUpper(r)
	}
	return false
}

// synonymGroup returns the expansion group for term, or {term} alone when
// term is a proper noun or matches no synonym stem.
func synonymGroup(term string, properNoun bool) []string {
	if properNoun {
		return []string{term}
	}
	for _, stem := range synonymStems {
		if term == stem || strings.HasPrefix(term, stem) {
			group := synonyms[stem]
			out := make([]string, len(group))
			copy(out, group)
			return out
		}
	}
	return []string{term}
}

// longestAndTotal computes the longest keyword term (ties broken
// lexicographically smallest) and the sum of keyword weights.
func longestAndTotal(keywords []types.Keyword) (string, float64) {
	var longest string
	var total float64
	for _, kw := range keywords {
		total += kw.Weight
		switch {
		case longest == "":
			longest = kw.Term
		case len(kw.Term) > len(longest):
			longest = kw.Term
		case len(kw.Term) == len(longest) && kw.Term < longest:
			longest = kw.Term
		}
	}
	return longest, total
}
