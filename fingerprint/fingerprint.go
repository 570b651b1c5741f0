// Package fingerprint derives a stable identity for semantically
// equivalent queries that differ only in literals, comments, or
// whitespace.
package fingerprint

import (
	"regexp"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const sampleTextLimit = 4096 // 4 KiB
const truncationMarker = "...[truncated]"

// Fingerprint is the result of normalizing a single SQL statement.
type Fingerprint struct {
	Hash           []byte
	NormalizedText string
	SampleText     string
}

var (
	lineCommentRe  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
	numberRe        = regexp.MustCompile(`\b0[xX][0-9a-fA-F]+\b|\b\d+\.\d+\b|\b\d+\b`)
	stringLiteralRe = regexp.MustCompile(`'(?:[^']|'')*'`)
)

// reservedKeywords is a representative set of SQL keywords upper-cased
// during normalization. Identifiers never appear in this set are left
// case-preserving, per the pipeline's step 6.
var reservedKeywords = []string{
	"select", "from", "where", "join", "inner", "outer", "left", "right",
	"on", "group", "by", "order", "having", "insert", "into", "values",
	"update", "set", "delete", "create", "table", "index", "drop", "alter",
	"and", "or", "not", "in", "exists", "between", "like", "is", "null",
	"as", "distinct", "top", "union", "all", "case", "when", "then", "else",
	"end", "with", "declare", "exec", "execute", "procedure", "view",
	"merge", "truncate", "begin", "commit", "rollback", "transaction",
}

var keywordRe = buildKeywordRegexp()

func buildKeywordRegexp() *regexp.Regexp {
	// Word boundaries keep identifiers like "selected_at" untouched and
	// make the alternation order irrelevant.
	parts := make([]string, len(reservedKeywords))
	for i, kw := range reservedKeywords {
		parts[i] = `\b` + kw + `\b`
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(parts, "|") + `)`)
}

// Compute normalizes sqlText and returns its
// stable fingerprint. The function is pure and idempotent: two inputs
// that differ only in whitespace, comment content, or literal values
// yield an equal Hash.
func Compute(sqlText string) Fingerprint {
	normalized := normalize(sqlText)
	sum := xxhash.Sum64String(normalized)
	hash := make([]byte, 8)
	for i := 0; i < 8; i++ {
		hash[i] = byte(sum >> (8 * (7 - i)))
	}

	return Fingerprint{
		Hash:           hash,
		NormalizedText: normalized,
		SampleText:     truncateSample(sqlText),
	}
}

// normalize applies the six normalization steps, in order.
func normalize(sqlText string) string {
	text := sqlText

	// Step 2: strip comments before collapsing whitespace, so a
	// comment spanning a line break doesn't leave stray tokens behind.
	text = blockCommentRe.ReplaceAllString(text, " ")
	text = lineCommentRe.ReplaceAllString(text, " ")

	// Step 1: collapse whitespace runs (including the ones comments
	// just introduced), trim ends.
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	// Step 4 (escape collapse): nested '' escape pairs collapse first
	// so an escaped quote inside a literal never truncates it early.
	text = strings.ReplaceAll(text, "''", "")

	// Step 5: date/GUID-shaped single-quoted literals get their own
	// sentinel; this must run before the generic string-literal
	// collapse below, since a date or GUID is itself a quoted string.
	text = replaceDateAndGUIDSentinels(text)

	// Step 4 (generic collapse): all remaining single-quoted string
	// literals become '#'; the step-5 sentinels are kept as they are.
	text = stringLiteralRe.ReplaceAllStringFunc(text, func(lit string) string {
		if lit == "'#DATE#'" || lit == "'#GUID#'" {
			return lit
		}
		return "'#'"
	})

	// Step 3: integer/decimal/hex literals.
	text = numberRe.ReplaceAllString(text, "#")

	// Step 6: uppercase recognized keywords; identifiers are untouched.
	text = keywordRe.ReplaceAllStringFunc(text, strings.ToUpper)

	return text
}

// replaceDateAndGUIDSentinels detects literals that look like dates or
// GUIDs while they are still quoted strings (before they've been
// collapsed to the generic '#' sentinel) and replaces them with their
// own sentinel instead.
func replaceDateAndGUIDSentinels(text string) string {
	return stringLiteralInnerRe.ReplaceAllStringFunc(text, func(m string) string {
		inner := m[1 : len(m)-1]
		if looksLikeDate(inner) {
			return "'#DATE#'"
		}
		if looksLikeGUID(inner) {
			return "'#GUID#'"
		}
		return m
	})
}

var stringLiteralInnerRe = regexp.MustCompile(`'[^']*'`)

var (
	dateShapeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}([T ]\d{2}:\d{2}(:\d{2}(\.\d+)?)?)?$`)
	guidShapeRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

func looksLikeDate(s string) bool { return dateShapeRe.MatchString(s) }
func looksLikeGUID(s string) bool { return guidShapeRe.MatchString(s) }

// truncateSample trims raw SQL text to the 4 KiB sample-text limit,
// appending an ellipsis marker on truncation.
func truncateSample(sqlText string) string {
	if len(sqlText) <= sampleTextLimit {
		return sqlText
	}
	limit := sampleTextLimit - len(truncationMarker)
	if limit < 0 {
		limit = sampleTextLimit
	}
	return sqlText[:limit] + truncationMarker
}
