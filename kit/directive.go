package kit

import (
	"fmt"
	"strings"
)

const (
	commentOpen  = "<!--"
	commentClose = "-->"
)

// directive is one classified comment, reconstructed across tokens.
type directive struct {
	keyword   string // "$name" or "@import", sigil included
	predicate string // trimmed text after the keyword, "" when absent
	text      string // full source span from "<!--" through "-->"
	suffix    string // literal text after "-->" in the closing token
	tokens    int    // tokens consumed, counting the opening one
}

// scanDirective inspects the comment opening at toks[i][j:] and, when it
// classifies as a directive, reconstructs its full text across as many
// tokens as it spans. Ordinary comments return ok=false and are the
// caller's to copy through verbatim. A directive comment with no closing
// delimiter before end of input is a syntax error.
func scanDirective(toks []string, i, j int) (directive, bool, error) {
	rest := toks[i][j+len(commentOpen):]
	if !directiveStart(rest, toks[i+1:]) {
		return directive{}, false, nil
	}

	full := toks[i][j:]
	count := 1
	end := strings.Index(full, commentClose)
	for end < 0 {
		if i+count >= len(toks) {
			return directive{}, false, fmt.Errorf("%w: comment never closed", ErrSyntax)
		}
		prev := len(full)
		full += toks[i+count]
		count++
		// The closing delimiter never straddles a token join, so only
		// the newly appended token needs searching.
		if k := strings.Index(full[prev:], commentClose); k >= 0 {
			end = prev + k
		}
	}

	d := directive{
		text:   full[:end+len(commentClose)],
		suffix: full[end+len(commentClose):],
		tokens: count,
	}
	var err error
	d.keyword, d.predicate, err = parseDirective(d.text)
	if err != nil {
		return directive{}, false, err
	}
	return d, true, nil
}

// directiveStart reports whether a comment whose text after "<!--" begins
// with rest classifies as a directive. rest covers only the remainder of
// the opening token; following tokens supply the spaced form, where runs
// of pure space/tab tokens may separate "<!--" from the keyword. Any
// other shape is an ordinary comment.
func directiveStart(rest string, following []string) bool {
	if keywordStart(rest) {
		return true
	}
	if !blank(rest) {
		return false
	}
	for _, tok := range following {
		if blank(tok) {
			continue
		}
		return keywordStart(tok)
	}
	return false
}

// parseDirective extracts keyword and predicate from a full directive
// span. The keyword starts at the first '$' or '@' in the comment body
// and runs until a separator; the predicate is whatever follows the
// separator run, trimmed.
func parseDirective(text string) (keyword, predicate string, err error) {
	body := text[len(commentOpen) : len(text)-len(commentClose)]
	k := strings.IndexAny(body, "$@")
	if k < 0 {
		return "", "", fmt.Errorf("%w: no keyword between comment delimiters", ErrSyntax)
	}
	end := k + 1
	for end < len(body) && !isSeparator(body[end]) {
		end++
	}
	keyword = body[k:end]
	for end < len(body) && isSeparator(body[end]) {
		end++
	}
	return keyword, strings.TrimSpace(body[end:]), nil
}

// keywordStart reports whether s opens with a '$' or '@' sigil followed
// by a letter.
func keywordStart(s string) bool {
	return len(s) >= 2 && (s[0] == '$' || s[0] == '@') && isLetter(s[1])
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// isSeparator reports whether c ends a keyword. '=' and ':' double as
// assignment separators, so "$title: My Site" and "$title = My Site"
// both assign.
func isSeparator(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '=', ':':
		return true
	}
	return false
}

// blank reports whether s contains only spaces and tabs. Line
// terminators are not blank: a newline between "<!--" and the keyword
// disqualifies the comment.
func blank(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != ' ' && s[i] != '\t' {
			return false
		}
	}
	return true
}
