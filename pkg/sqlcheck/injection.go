package sqlcheck

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionResult describes an injection pattern found in a string literal of
// a generated statement.
type InjectionResult struct {
	Fingerprint string
	Literal     string
}

// ScreenLiterals runs libinjection over every single-quoted string literal in
// the statement. Generated SQL embeds free text from prompts as literals, and
// a prompt crafted to escape its literal shows up here as a SQLi fingerprint.
//
// Returns nil if all literals are clean.
func ScreenLiterals(sqlQuery string) *InjectionResult {
	for _, lit := range extractStringLiterals(sqlQuery) {
		if isSQLi, fingerprint := libinjection.IsSQLi(lit); isSQLi {
			return &InjectionResult{
				Fingerprint: string(fingerprint),
				Literal:     lit,
			}
		}
	}
	return nil
}

// extractStringLiterals returns the contents of single-quoted literals,
// including the quotes, so libinjection sees the same token boundaries the
// database would.
func extractStringLiterals(sqlQuery string) []string {
	var literals []string
	var sb strings.Builder

	inString := false
	prevChar := rune(0)

	for _, char := range sqlQuery {
		if inString {
			sb.WriteRune(char)
			if char == '\'' && prevChar != '\\' {
				inString = false
				literals = append(literals, sb.String())
				sb.Reset()
			}
		} else if char == '\'' {
			inString = true
			sb.WriteRune(char)
		}
		prevChar = char
	}

	return literals
}
