package history

import (
	"strings"
	"unicode"
)

const maxDisplayLen = 60

// systemAliases short-circuits well-known machine actors before any token
// splitting happens.
var systemAliases = map[string]string{
	"system":    "System",
	"scheduler": "Scheduler",
	"importer":  "Importer",
}

// DisplayName renders a raw actor string (user ID, email, or system tag) as a
// human-readable name: the email domain is stripped, the local part is split
// on '.', '-' and '_', each token is title-cased, and the result is truncated
// to 60 characters with an ellipsis.
func DisplayName(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return "Unknown"
	}
	if alias, ok := systemAliases[strings.ToLower(actor)]; ok {
		return alias
	}

	local := actor
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}

	tokens := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '-' || r == '_'
	})
	if len(tokens) == 0 {
		return truncate(actor)
	}

	for i, token := range tokens {
		tokens[i] = titleCase(token)
	}
	return truncate(strings.Join(tokens, " "))
}

func titleCase(token string) string {
	runes := []rune(strings.ToLower(token))
	if len(runes) == 0 {
		return ""
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func truncate(display string) string {
	runes := []rune(display)
	if len(runes) <= maxDisplayLen {
		return display
	}
	return string(runes[:maxDisplayLen-1]) + "…"
}
