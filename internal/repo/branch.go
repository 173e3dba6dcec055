package repo

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

const (
	// MainBranch is the implicit branch formed by the files directly in a
	// hardware version directory.
	MainBranch = "."

	// DefaultPriority is used when a branch has no usable .priority file.
	DefaultPriority = 1000

	// PriorityFile holds a single integer overriding DefaultPriority.
	PriorityFile = ".priority"

	// IgnoreFile excludes a branch directory from scanning when present.
	IgnoreFile = ".ignore"
)

// Branch is a named set of firmware builds for one hardware target.
type Branch struct {
	Name     string
	Path     string
	Priority int

	// Firmware is kept sorted from oldest to newest version.
	Firmware []*Firmware

	// Boards found inside a branch directory are collected but not installed.
	Boards []*Board
}

// IsMain reports whether b is the implicit main branch.
func (b *Branch) IsMain() bool {
	return b.Name == MainBranch
}

func (b *Branch) String() string {
	return fmt.Sprintf("%s (priority %d)", b.Name, b.Priority)
}

// CompareBranches orders branches from least to most preferred. The main
// branch always sorts first, whatever its priority. Other branches sort by
// priority, then by name.
func CompareBranches(a, b *Branch) int {
	switch {
	case a.IsMain() && !b.IsMain():
		return -1
	case !a.IsMain() && b.IsMain():
		return 1
	}

	if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// ParsePriority parses the content of a .priority file.
func ParsePriority(data []byte) (int, error) {
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, fmt.Errorf("empty priority")
	}
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid priority %q: %w", s, err)
	}
	return p, nil
}
