package post

import (
	"strings"

	"golang.org/x/net/html"
)

// Excerpt reduces an HTML fragment to its first n runes of readable
// text. Tags are stripped, whitespace collapsed, and the cut lands on a
// word boundary with a trailing ellipsis when the text was longer.
func Excerpt(fragment string, n int) string {
	tokenizer := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			// io.EOF or malformed markup; the text so far is the excerpt.
			break
		}
		switch tokenType {
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skipContent(string(name)) {
				skip++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skipContent(string(name)) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			b.Write(tokenizer.Text())
		}
	}
	text := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	cut := string(runes[:n])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "…"
}

func skipContent(tag string) bool {
	return tag == "script" || tag == "style"
}
