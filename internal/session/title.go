package session

import (
	"strings"
	"unicode"
)

const maxTitleLen = 30

// TitleFromPrompt derives a short human-readable session title from the
// first user prompt: trailing punctuation is dropped, text after "about"
// is preferred, non-alphanumerics collapse to spaces, and the result is
// title-cased and capped at 30 characters.
func TitleFromPrompt(prompt string) string {
	title := strings.TrimSpace(prompt)
	title = strings.TrimRight(title, ".?!")

	if idx := strings.LastIndex(strings.ToLower(title), "about"); idx >= 0 {
		title = title[idx+len("about"):]
	}

	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	title = strings.Join(strings.Fields(b.String()), " ")
	title = titleCase(title)

	if r := []rune(title); len(r) > maxTitleLen {
		title = strings.TrimSpace(string(r[:maxTitleLen]))
	}
	return title
}

// slugify turns a title into a filesystem-safe id fragment.
func slugify(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	slug := b.String()
	if slug == "" {
		slug = "chat"
	}
	return slug
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
