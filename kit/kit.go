// Package kit expands the directive language embedded in HTML comments
// that stitches this site's pages together. A directive is a comment
// whose body starts with a '$' or '@' keyword: variables assign and
// substitute text, imports splice other template files in place, and
// everything else passes through byte for byte.
//
// Expansion is recursive: imported templates are compiled with the same
// variable dictionary, so a value assigned in one file is visible to
// every directive processed after it anywhere in the tree. An ancestry
// guard keeps import chains from looping back into a file that is still
// being expanded.
package kit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultExtension is the template extension assumed when a Compiler is
// configured without one.
const DefaultExtension = ".kit"

// Compiler holds the fixed configuration for template expansion. The
// zero value compiles ".kit" files with no search folders. A Compiler is
// read-only during compiles, so one instance may serve many calls,
// concurrent ones included; all mutable state lives per call.
type Compiler struct {
	// Extension is the template file extension, DefaultExtension when
	// empty. Imports written without an extension get it appended, and
	// resolved imports carrying it are expanded recursively rather than
	// included raw.
	Extension string

	// Folders are extra directories tried, in order, when an import does
	// not resolve next to the importing file.
	Folders []string

	// PostsDir is the fixed directory holding the files that
	// import-partial directives name through their variable.
	PostsDir string
}

func (c *Compiler) ext() string {
	if c.Extension == "" {
		return DefaultExtension
	}
	return c.Extension
}

// CompileFile expands the template at path and returns the final text.
// The variable dictionary and ancestry guard are created fresh for the
// call and discarded with it. Errors wrap one of the package sentinels
// and carry the failing file and 1-based line as a *Error.
func (c *Compiler) CompileFile(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &Error{Path: path, Line: 1, Err: fmt.Errorf("%w: %v", ErrIO, err)}
	}
	st := &state{comp: c, vars: make(map[string]string)}
	text, err := st.expandFile(abs)
	if err != nil {
		return "", fail(err, abs, 1)
	}
	return text, nil
}

// CompileSource expands src as if it were the contents of a template
// file named name. name anchors error positions and relative import
// resolution and need not exist on disk.
func (c *Compiler) CompileSource(src, name string) (string, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", &Error{Path: name, Line: 1, Err: fmt.Errorf("%w: %v", ErrIO, err)}
	}
	st := &state{comp: c, vars: make(map[string]string)}
	text, err := st.expandSource(src, abs)
	if err != nil {
		return "", fail(err, abs, 1)
	}
	return text, nil
}

// state is the mutable half of a compile: the variable dictionary and
// the ancestry stack, shared by every recursive expansion in one compile
// tree and discarded when the top-level call returns.
type state struct {
	comp  *Compiler
	vars  map[string]string
	stack []string
}

// onStack reports whether path is already mid-expansion. Comparison is
// case-insensitive so case-only aliases of the same file still trip the
// guard.
func (st *state) onStack(path string) bool {
	for _, p := range st.stack {
		if strings.EqualFold(p, path) {
			return true
		}
	}
	return false
}

func (st *state) expandFile(path string) (string, error) {
	if st.onStack(path) {
		return "", cycleErr(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &Error{Path: path, Line: 1, Err: fmt.Errorf("%w: %s", ErrMissingFile, filepath.Base(path))}
		}
		return "", &Error{Path: path, Line: 1, Err: fmt.Errorf("%w: %v", ErrIO, err)}
	}
	if !utf8.Valid(data) {
		return "", &Error{Path: path, Line: invalidLine(data), Err: fmt.Errorf("%w: not valid UTF-8", ErrTokenize)}
	}
	return st.expandSource(string(data), path)
}

func (st *state) expandSource(src, path string) (string, error) {
	if st.onStack(path) {
		return "", cycleErr(path)
	}
	st.stack = append(st.stack, path)
	defer func() { st.stack = st.stack[:len(st.stack)-1] }()

	w := &walker{st: st, path: path, toks: tokenize(src), line: 1}
	return w.run()
}

// cycleErr stays unpositioned: the dispatch that triggered the
// re-entry anchors it at the importing directive's line.
func cycleErr(path string) error {
	return fmt.Errorf("%w: %s is already being expanded", ErrCycle, filepath.Base(path))
}

// walker expands one file's token stream. line tracks the 1-based
// position in this file's source only; text spliced in from imports or
// variable values never advances it.
type walker struct {
	st   *state
	path string
	toks []string
	i    int
	line int
	out  strings.Builder
}

func (w *walker) run() (string, error) {
	for w.i < len(w.toks) {
		tok := w.toks[w.i]
		j := strings.Index(tok, commentOpen)
		if j < 0 {
			w.emit(tok)
			w.i++
			continue
		}
		d, ok, err := scanDirective(w.toks, w.i, j)
		if err != nil {
			return "", fail(err, w.path, w.line)
		}
		if !ok {
			// Ordinary comment: the token passes through whole,
			// whitespace and all.
			w.emit(tok)
			w.i++
			continue
		}
		w.emit(tok[:j])
		if err := w.dispatch(d); err != nil {
			return "", err
		}
	}
	return w.out.String(), nil
}

func (w *walker) dispatch(d directive) error {
	start := w.line
	name := d.keyword[1:]
	var err error
	switch {
	case strings.EqualFold(name, "import"), strings.EqualFold(name, "include"):
		err = w.importFiles(d.predicate)
	case strings.EqualFold(name, "import-partial"):
		err = w.importPartial(d.predicate)
	default:
		err = w.variable(name, d.predicate)
	}
	if err != nil {
		return fail(err, w.path, start)
	}
	w.line += countLines(d.text)
	// A suffix that is exactly one line terminator is dropped, keeping
	// directive-only lines from leaving a blank line behind. It still
	// counts toward the line position.
	if isLineTerminator(d.suffix) {
		w.line++
	} else {
		w.emit(d.suffix)
	}
	w.i += d.tokens
	return nil
}

// importFiles expands an import/include predicate: a comma-separated
// list of file specs, processed in order. Specs resolving to a template
// file recurse into a full expansion sharing this tree's variables;
// anything else is appended raw.
func (w *walker) importFiles(predicate string) error {
	specs := splitSpecs(predicate)
	if len(specs) == 0 {
		return fmt.Errorf("%w: import needs a file name", ErrSyntax)
	}
	ext := w.st.comp.ext()
	base := filepath.Dir(w.path)
	for _, spec := range specs {
		if filepath.Ext(spec) == "" {
			spec += ext
		}
		resolved, err := w.st.comp.resolve(base, spec)
		if err != nil {
			return err
		}
		if strings.EqualFold(filepath.Ext(resolved), ext) {
			text, err := w.st.expandFile(resolved)
			if err != nil {
				return err
			}
			// Spliced text belongs to the child file; its line
			// terminators must not advance this file's counter.
			w.out.WriteString(text)
			continue
		}
		raw, err := readRaw(resolved)
		if err != nil {
			return err
		}
		w.out.WriteString(raw)
	}
	return nil
}

// importPartial appends the raw contents of the file named by a
// variable's value, looked up under the posts directory. The target is
// never expanded.
func (w *walker) importPartial(predicate string) error {
	if predicate == "" {
		return fmt.Errorf("%w: import-partial needs a variable name", ErrSyntax)
	}
	name := strings.TrimPrefix(predicate, "$")
	val, ok := w.st.vars[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndefinedVar, name)
	}
	raw, err := readRaw(filepath.Join(w.st.comp.PostsDir, val))
	if err != nil {
		return err
	}
	w.out.WriteString(raw)
	return nil
}

// variable handles every keyword that is not an import form. With a
// predicate it assigns, producing no output; without one it substitutes
// the variable's current value.
func (w *walker) variable(name, predicate string) error {
	if predicate != "" {
		w.st.vars[name] = predicate
		return nil
	}
	val, ok := w.st.vars[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndefinedVar, name)
	}
	w.out.WriteString(val)
	return nil
}

// emit copies source text of the current file to the output, advancing
// the line counter past any terminators it contains.
func (w *walker) emit(s string) {
	w.out.WriteString(s)
	w.line += countLines(s)
}

// countLines counts line terminators in s. CRLF counts once.
func countLines(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\n':
			n++
		case '\r':
			if i+1 >= len(s) || s[i+1] != '\n' {
				n++
			}
		}
	}
	return n
}

func isLineTerminator(s string) bool {
	return s == "\n" || s == "\r\n" || s == "\r"
}

// splitSpecs splits a comma-separated import list, trimming whitespace
// and surrounding quotes from each entry and dropping empties.
func splitSpecs(predicate string) []string {
	var specs []string
	for _, part := range strings.Split(predicate, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, `"'`)
		part = strings.TrimSpace(part)
		if part != "" {
			specs = append(specs, part)
		}
	}
	return specs
}

// readRaw reads a file included without directive expansion.
func readRaw(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrMissingFile, filepath.Base(path))
		}
		return "", fmt.Errorf("%w: %v", ErrIO, err)
	}
	return string(data), nil
}

// invalidLine walks data up to its first invalid UTF-8 byte and returns
// the 1-based line that byte sits on.
func invalidLine(data []byte) int {
	line := 1
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return line
		}
		switch r {
		case '\n':
			line++
		case '\r':
			if i+1 >= len(data) || data[i+1] != '\n' {
				line++
			}
		}
		i += size
	}
	return line
}
