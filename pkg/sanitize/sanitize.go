// Package sanitize neutralizes markup-significant characters in string
// fields before storage. It runs exactly once per submission, strictly
// after validation, so validation rules see raw content and stored content
// is escape-safe for later rendering.
package sanitize

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/thermaworks/intake/pkg/contracts"
)

// escaper replaces the five markup-significant characters with their
// character-reference equivalents. The table is part of the wire
// contract: the front end renders stored records assuming exactly these
// five replacements.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&#x27;",
	"<", "&lt;",
	">", "&gt;",
)

// String normalizes to NFC, trims surrounding whitespace, and escapes
// markup characters.
func String(s string) string {
	return escaper.Replace(strings.TrimSpace(norm.NFC.String(s)))
}

// Submission sanitizes every string-valued field of sub in place and
// returns it. Non-string fields pass through unchanged.
func Submission(sub *contracts.Submission) *contracts.Submission {
	for _, field := range sub.StringFields() {
		*field = String(*field)
	}
	return sub
}
