package contract

import (
	"fmt"
	"strings"
)

// ExtractError represents a payload location failure
type ExtractError struct {
	Code    string
	Message string
}

func (e ExtractError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ErrNoPayload indicates no candidate payload was found in the output
var ErrNoPayload = ExtractError{
	Code:    "PAYLOAD_NOT_FOUND",
	Message: "no operation batch payload found in engine output",
}

// Ambiguous creates the error for multiple candidate payloads
func Ambiguous(count int) ExtractError {
	return ExtractError{
		Code:    "PAYLOAD_AMBIGUOUS",
		Message: fmt.Sprintf("found %d candidate payloads, expected exactly one", count),
	}
}

// IsNoPayload checks for the no-payload error
func IsNoPayload(err error) bool {
	extractErr, ok := err.(ExtractError)
	return ok && extractErr.Code == ErrNoPayload.Code
}

// IsAmbiguous checks for the ambiguous-payload error
func IsAmbiguous(err error) bool {
	extractErr, ok := err.(ExtractError)
	return ok && extractErr.Code == "PAYLOAD_AMBIGUOUS"
}

// ExtractPayload locates exactly one self-contained batch payload in the
// engine's trailing output. A candidate is a balanced top-level JSON object
// that mentions an "operations" or "summary" key at its first nesting level;
// zero candidates or more than one is a failure, never a best-effort pick.
// Fenced code blocks are unwrapped before scanning, since engines routinely
// wrap JSON in them.
func ExtractPayload(text string) (string, error) {
	text = stripFences(text)

	candidates := scanObjects(text)

	var payloads []string
	for _, c := range candidates {
		if hasBatchKey(c) {
			payloads = append(payloads, c)
		}
	}

	switch len(payloads) {
	case 0:
		return "", ErrNoPayload
	case 1:
		return payloads[0], nil
	default:
		return "", Ambiguous(len(payloads))
	}
}

// stripFences removes markdown code fence lines, keeping their content
func stripFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// scanObjects returns every balanced top-level {...} region in the text.
// String literals and escapes are honored so braces inside strings do not
// affect nesting. Unterminated regions are dropped.
func scanObjects(text string) []string {
	var objects []string

	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					objects = append(objects, text[start:i+1])
					start = -1
				}
			}
		}
	}

	return objects
}

// hasBatchKey reports whether the object mentions "operations" or "summary"
// at its first nesting level. The check is syntactic so that a payload with
// broken JSON (e.g., a trailing comma) still counts as the candidate and
// fails later at parse time rather than disappearing entirely.
func hasBatchKey(object string) bool {
	depth := 0
	inString := false
	escaped := false
	var key strings.Builder
	collecting := false

	runes := []rune(object)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inString {
			switch {
			case escaped:
				escaped = false
				if collecting {
					key.WriteRune(r)
				}
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
				if collecting {
					collecting = false
					name := key.String()
					key.Reset()
					// A key is a string followed by a colon
					if depth == 1 && followedByColon(runes, i+1) {
						if name == "operations" || name == "summary" {
							return true
						}
					}
				}
			default:
				if collecting {
					key.WriteRune(r)
				}
			}
			continue
		}

		switch r {
		case '"':
			inString = true
			collecting = true
			key.Reset()
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		}
	}
	return false
}

func followedByColon(runes []rune, from int) bool {
	for i := from; i < len(runes); i++ {
		switch runes[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ':':
			return true
		default:
			return false
		}
	}
	return false
}
