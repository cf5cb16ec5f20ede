package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// DetectLanguage guesses the language of an unlabelled code block. It returns "" when
// no lexer is confident enough.
func DetectLanguage(code string) string {
	if strings.TrimSpace(code) == "" {
		return ""
	}
	return lexerName(lexers.Analyse(code))
}

// NormalizeLanguage maps a fence label such as "golang" or "py" to the lexer's primary alias.
// Unknown labels are kept as written.
func NormalizeLanguage(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if name := lexerName(lexers.Get(label)); name != "" {
		return name
	}
	return label
}

func lexerName(l chroma.Lexer) string {
	if l == nil {
		return ""
	}
	cfg := l.Config()
	if len(cfg.Aliases) > 0 {
		return cfg.Aliases[0]
	}
	return strings.ToLower(cfg.Name)
}
