package kit

// tokenize splits src into an ordered sequence of fragments that covers
// the text exactly once. A boundary is placed after a space, tab, or
// line feed; after a carriage return not followed by a line feed; and
// between a '>' and an immediately following '<'. The final character
// always ends the last token.
//
// The boundary rules guarantee that the comment delimiters "<!--" and
// "-->" are never split across tokens, which is what directive
// reconstruction relies on.
func tokenize(src string) []string {
	if src == "" {
		return nil
	}
	var toks []string
	start := 0
	for i := 0; i < len(src); i++ {
		switch src[i] {
		case ' ', '\t', '\n':
			toks = append(toks, src[start:i+1])
			start = i + 1
		case '\r':
			// CRLF splits after the LF, not between the two.
			if i+1 < len(src) && src[i+1] == '\n' {
				continue
			}
			toks = append(toks, src[start:i+1])
			start = i + 1
		case '>':
			if i+1 < len(src) && src[i+1] == '<' {
				toks = append(toks, src[start:i+1])
				start = i + 1
			}
		}
	}
	if start < len(src) {
		toks = append(toks, src[start:])
	}
	return toks
}
