package assistant

import (
	"regexp"
	"strings"
)

// strippedBlockPattern matches a run of blocks separated only by whitespace, plus the
// whitespace before the first and after the last. The run is replaced as one unit.
var strippedBlockPattern = regexp.MustCompile("(?s)(\\s*)(?:```json\\s*.*?\\s*```(\\s*))+")

// Sanitize removes every fenced json block, joining the surrounding text with the widest
// separator that was around the block (paragraph break, line break or space), and trims the result.
// A closing fence inside a JSON string ends the block early; the tail stays visible.
func Sanitize(text string) string {
	out := strippedBlockPattern.ReplaceAllStringFunc(text, func(match string) string {
		sub := strippedBlockPattern.FindStringSubmatch(match)
		if sub == nil {
			return ""
		}
		return separatorFor(sub[1], sub[2])
	})
	return strings.TrimSpace(out)
}

func separatorFor(before, after string) string {
	newlines := strings.Count(before, "\n")
	if n := strings.Count(after, "\n"); n > newlines {
		newlines = n
	}
	switch {
	case newlines >= 2:
		return "\n\n"
	case newlines == 1:
		return "\n"
	case before == "" && after == "":
		return ""
	default:
		return " "
	}
}
