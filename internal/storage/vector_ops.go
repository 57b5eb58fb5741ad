package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// serializeVector encodes a float32 vector as a little-endian BLOB for
// storage in kg_edge_embeddings.vector.
func serializeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeVector decodes a little-endian float32 BLOB back into a vector.
func deserializeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(buf[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

// cosineSimilarity computes cosine similarity between two equal-length
// vectors, guarding against a zero-norm vector. The result is clamped into
// [0, 1] for display, even though the true mathematical range is [-1, 1].
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		normA += fa * fa
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

// ftsOperatorPattern matches FTS5 boolean operators that must be escaped so
// user query text is never interpreted as query syntax.
var ftsOperatorPattern = regexp.MustCompile(`(?i)\b(AND|OR|NOT|NEAR)\b`)

// sanitizeFTSTerm escapes a single term for safe inclusion in an FTS5 MATCH
// expression, then appends the trailing '*' for prefix matching.
func sanitizeFTSTerm(term string) string {
	replacer := strings.NewReplacer(`"`, `""`, `*`, ``, `(`, ``, `)`, ``)
	escaped := replacer.Replace(term)
	escaped = ftsOperatorPattern.ReplaceAllString(escaped, "")
	escaped = strings.TrimSpace(escaped)
	if escaped == "" {
		return ""
	}
	return fmt.Sprintf(`"%s"*`, escaped)
}

// buildPrefixOrQuery builds the lexical query: each expanded keyword as a
// prefix-wildcard term, OR-combined.
func buildPrefixOrQuery(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if s := sanitizeFTSTerm(t); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " OR ")
}

// normalizeBM25 turns SQLite's bm25() rank (lower is better, unbounded
// negative) into a (0, 1] score where higher is better.
func normalizeBM25(rank float64) float64 {
	return 1.0 / (1.0 + math.Abs(rank)/50.0)
}
