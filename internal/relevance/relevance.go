// Package relevance implements the edge filter applied before graph
// expansion, and the message filter applied after fusion, before assembly.
package relevance

import (
	"strings"

	"github.com/ctxfabric/retrieval-engine/pkg/types"
)

// EdgeRelevant reports whether edge is kept as a graph-traversal seed: its
// text (lowercased) must contain at least one of fp's expanded keywords as a
// substring. The similarity-band half of the edge filter is enforced
// upstream by only ever calling this on the vector searcher's already-top-k
// output.
func EdgeRelevant(fp *types.Fingerprint, edge *types.KGEdge) bool {
	text := strings.ToLower(edge.Text())
	for term := range fp.Expanded {
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Coverage computes the weighted fraction of fp's original keywords that
// content satisfies. A keyword is satisfied by literal containment of the
// keyword itself or of any member of its synonym expansion group; see
// DESIGN.md "Open Question decisions" #1.
func Coverage(fp *types.Fingerprint, content string) float64 {
	if fp.TotalWeight == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	var covered float64
	for _, kw := range fp.Keywords {
		if kw.Covers(lower) {
			covered += kw.Weight
		}
	}
	return covered / fp.TotalWeight
}

// HasLongest reports whether content literally contains fp's longest
// original keyword.
func HasLongest(fp *types.Fingerprint, content string) bool {
	if fp.Longest == "" {
		return false
	}
	return strings.Contains(strings.ToLower(content), fp.Longest)
}

// MessageRelevant implements the three-disjunct keep rule: literal match on
// the longest keyword, or a lexical score paired with moderate coverage, or
// high coverage alone.
func MessageRelevant(fp *types.Fingerprint, content string, score float64) bool {
	if HasLongest(fp, content) {
		return true
	}
	coverage := Coverage(fp, content)
	if score > 0.01 && coverage >= 0.5 {
		return true
	}
	return coverage >= 0.6
}
