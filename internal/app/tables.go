package app

import (
	"regexp"
	"strings"
)

// TableHint is appended to outgoing comparative questions so the model answers
// with a GitHub-flavored Markdown table instead of prose.
const TableHint = " Present this comparison as a GitHub-Flavored Markdown table ONLY (no additional text). " +
	"Start with a header row (| Feature | Option A | Option B |), then a separator row (| --- | --- | --- |), then the data rows. " +
	"Keep each cell to 1-2 lines max. Use bullet points (•) within cells if needed."

// DefaultOCRQuestion is asked when the user sends an empty prompt in OCR mode.
const DefaultOCRQuestion = "Give a concise summary and extract key values (important dates, totals, names, addresses, emails, phone numbers)."

var (
	comparativeRe = regexp.MustCompile(`(?i)\b(vs|versus|compare|comparison|differences?|pros\s*/?\s*cons|benefits|drawbacks|advantages|disadvantages)\b`)

	// A syntactically complete GFM table: header row, separator row of
	// dashes/colons, then any number of data rows.
	gfmTableRe = regexp.MustCompile(`(?m)^[ \t]*\|.+\|[ \t]*\n[ \t]*\|(?:[ \t]*:?-+:?[ \t]*\|)+[ \t]*(?:\n[ \t]*\|.+\|[ \t]*)*`)

	// Consecutive pipe-delimited rows with no separator row.
	pipeRowsRe = regexp.MustCompile(`(?m)^(?:[ \t]*\|[^\n]+\|[ \t]*\n?)+`)

	// A single "- label: value" bullet line.
	listItemRe = regexp.MustCompile(`^[ \t]*[-*][ \t]*([^:]+):[ \t]*(.+)$`)

	nonPipeRe = regexp.MustCompile(`[^|]`)
)

// LooksComparative reports whether a user question asks for a comparison and
// should therefore get a table-formatted answer.
func LooksComparative(q string) bool {
	return comparativeRe.MatchString(q) || strings.Contains(strings.ToLower(q), " vs ")
}

// WithTableHint appends the table instruction to comparative questions and
// leaves everything else alone.
func WithTableHint(q string) string {
	if LooksComparative(q) {
		return q + TableHint
	}
	return q
}

// StripTableHint removes the outgoing instruction suffix from a stored user
// message so replayed history shows only what the user typed.
func StripTableHint(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, TableHint, ""))
}

// NormalizeTable turns a freeform reply to a comparative question into a
// canonical Markdown table. Matchers apply in priority order and the first
// hit wins; non-comparative input passes through untouched.
func NormalizeTable(text string, comparative bool) string {
	if !comparative {
		return text
	}

	// 1) A valid table already: return the first one, drop surrounding prose.
	if table := gfmTableRe.FindString(text); table != "" {
		return strings.TrimSpace(table)
	}

	// 2) Pipe rows without a separator: synthesize one from the header.
	if block := pipeRowsRe.FindString(text); block != "" {
		rows := strings.Split(strings.TrimSpace(block), "\n")
		if len(rows) > 1 {
			header := rows[0]
			separator := nonPipeRe.ReplaceAllString(header, "-")
			return header + "\n" + separator + "\n" + strings.Join(rows[1:], "\n")
		}
	}

	// 3) Bulleted "label: value" pairs: fold into a two-column table.
	var pairs [][]string
	for _, line := range strings.Split(text, "\n") {
		if m := listItemRe.FindStringSubmatch(line); m != nil {
			pairs = append(pairs, []string{strings.TrimSpace(m[1]), strings.TrimSpace(m[2])})
		}
	}
	if len(pairs) > 0 {
		out := []string{"| Feature | Details |", "| --- | --- |"}
		for _, p := range pairs {
			out = append(out, "| "+p[0]+" | "+p[1]+" |")
		}
		return strings.Join(out, "\n")
	}

	// 4) Nothing table-like; best effort only.
	return text
}

// ClampTitle normalizes a sidebar title for display: empty becomes "New chat",
// anything longer than 60 runes is cut with an ellipsis.
func ClampTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "New chat"
	}
	runes := []rune(title)
	if len(runes) <= 60 {
		return title
	}
	return string(runes[:59]) + "…"
}
