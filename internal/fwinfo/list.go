package fwinfo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	installedFirmwareRe = regexp.MustCompile(`^firmware-\d+\.bin$`)
	installedBoardRe    = regexp.MustCompile(`^board(?:-\d+)?\.bin$`)
)

// Entry is one installed file of a destination tree
type Entry struct {
	Family   string
	Hardware string
	Name     string
	Path     string
	Board    bool
	Info     Info
}

// ID returns the hardware identity the entry belongs to
func (e Entry) ID() string {
	return e.Family + " " + e.Hardware
}

// ListExternal walks an installed tree laid out as <family>/<hwversion>/ and
// inspects every firmware image found there. Board files are listed without
// inspection. A failing inspection is logged and leaves the entry's Info
// empty.
func ListExternal(ctx context.Context, inspector Inspector, root string, logger *slog.Logger) ([]Entry, error) {
	families, err := subdirs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", root, err)
	}

	var entries []Entry
	for _, family := range families {
		hwVersions, err := subdirs(filepath.Join(root, family))
		if err != nil {
			return nil, fmt.Errorf("failed to read family %s: %w", family, err)
		}

		for _, hw := range hwVersions {
			dir := filepath.Join(root, family, hw)
			files, err := os.ReadDir(dir)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", dir, err)
			}

			for _, f := range files {
				if f.IsDir() {
					continue
				}
				e := Entry{
					Family:   family,
					Hardware: hw,
					Name:     f.Name(),
					Path:     filepath.Join(dir, f.Name()),
				}

				switch {
				case installedFirmwareRe.MatchString(e.Name):
					info, err := inspector.Inspect(ctx, e.Path)
					if err != nil {
						if ctx.Err() != nil {
							return nil, ctx.Err()
						}
						logger.Warn("failed to inspect firmware", "path", e.Path, "error", err)
					}
					e.Info = info
				case installedBoardRe.MatchString(e.Name):
					e.Board = true
				default:
					continue
				}
				entries = append(entries, e)
			}
		}
	}

	return entries, nil
}

// subdirs returns the sorted names of the non-hidden directories in dir
func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
