// Package manifest edits a linux-firmware style WHENCE file in place.
//
// The file is made of blocks separated by blank lines. A block starts with a
// "Driver: <name>" line and lists installed files as
//
//	File: <path>
//	Version: <version>
//
// pairs. Edits are anchored text substitutions: nothing is parsed into a
// model, so unrelated text is never rewritten. Every edit needs exactly one
// match; otherwise the text is returned unchanged together with an error.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	// ErrNoMatch is returned when the anchor of an edit is not found.
	ErrNoMatch = errors.New("no match in manifest")
	// ErrAmbiguousMatch is returned when the anchor of an edit occurs more than once.
	ErrAmbiguousMatch = errors.New("ambiguous match in manifest")
)

// Entry is a new file record for a driver block.
type Entry struct {
	File    string
	Version string
	Notice  string // optional license/notice file installed next to File
}

func (e Entry) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\nVersion: %s\n", e.File, e.Version)
	if e.Notice != "" {
		fmt.Fprintf(&b, "File: %s\n", e.Notice)
	}
	return b.String()
}

func checkCount(n int, what string) error {
	switch {
	case n == 0:
		return fmt.Errorf("%w: %s", ErrNoMatch, what)
	case n > 1:
		return fmt.Errorf("%w: %s found %d times", ErrAmbiguousMatch, what, n)
	}
	return nil
}

// HasFile reports whether a "File: <file>" line is present.
func HasFile(text, file string) bool {
	re := regexp.MustCompile(`(?m)^File:[ \t]*` + regexp.QuoteMeta(file) + `[ \t]*$`)
	return re.MatchString(text)
}

// UpdateVersion replaces the value of the Version line directly following
// "File: <file>".
func UpdateVersion(text, file, version string) (string, error) {
	re := regexp.MustCompile(`(?m)^File:[ \t]*` + regexp.QuoteMeta(file) + `[ \t]*\nVersion:[ \t]*(.*)$`)

	matches := re.FindAllStringSubmatchIndex(text, -1)
	if err := checkCount(len(matches), "File: "+file); err != nil {
		return text, err
	}

	start, end := matches[0][2], matches[0][3]
	return text[:start] + version + text[end:], nil
}

// AddEntry inserts e at the end of the first paragraph of the block
// belonging to driver. When that paragraph only holds the Driver line, as in
// the upstream WHENCE file, the entry goes to the end of the next paragraph.
func AddEntry(text, driver string, e Entry) (string, error) {
	re := regexp.MustCompile(`(?m)^Driver:[ \t]*` + regexp.QuoteMeta(driver) + `(?:[ \t]|$)`)

	matches := re.FindAllStringIndex(text, -1)
	if err := checkCount(len(matches), "Driver: "+driver); err != nil {
		return text, err
	}

	start := matches[0][0]
	end := paragraphEnd(text, start)
	if !strings.Contains(text[start:end], "\n") {
		// Header-only paragraph, skip the blank lines that follow it.
		next := end
		for next < len(text) && text[next] == '\n' {
			next++
		}
		if next < len(text) && !strings.HasPrefix(text[next:], "Driver:") {
			end = paragraphEnd(text, next)
		}
	}

	// Insert after the newline ending the paragraph's last line.
	pos := end
	if pos < len(text) {
		pos++
	}

	prefix := text[:pos]
	if prefix != "" && !strings.HasSuffix(prefix, "\n") {
		prefix += "\n"
	}

	return prefix + e.text() + text[pos:], nil
}

// paragraphEnd returns the index of the newline that ends the paragraph
// starting at from, or len(text) when the paragraph runs to the end.
func paragraphEnd(text string, from int) int {
	i := strings.Index(text[from:], "\n\n")
	if i < 0 {
		return len(text)
	}
	return from + i
}

// Patch applies edit to the manifest file at path. The file is only written
// when the edit succeeds and changes the content.
func Patch(path string, edit func(text string) (string, error)) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	updated, err := edit(string(data))
	if err != nil {
		return false, err
	}
	if updated == string(data) {
		return false, nil
	}

	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write manifest: %w", err)
	}
	return true, nil
}
