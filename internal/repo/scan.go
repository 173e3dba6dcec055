package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Scanner builds a Repository from a directory tree.
type Scanner struct {
	logger    *slog.Logger
	blacklist []string
}

// NewScanner creates a scanner. Firmware whose version matches one of the
// blacklist patterns is left out of the model entirely.
func NewScanner(logger *slog.Logger, blacklist []string) *Scanner {
	return &Scanner{
		logger:    logger,
		blacklist: blacklist,
	}
}

// Scan walks root, treating every visible top-level directory as a device
// family and each of its subdirectories as a hardware version.
func (s *Scanner) Scan(root string) (*Repository, error) {
	repo := &Repository{Root: root}

	families, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository root: %w", err)
	}

	for _, family := range families {
		if isHidden(family.Name()) {
			continue
		}
		familyDir := filepath.Join(root, family.Name())
		isDir, err := entryIsDir(familyDir, family)
		if err != nil {
			return nil, err
		}
		if !isDir {
			continue
		}

		if err := s.scanFamily(repo, family.Name(), familyDir); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("repository scanned",
		"root", root,
		"hardware", len(repo.Hardware),
		"anomalies", len(repo.Anomalies))

	return repo, nil
}

func (s *Scanner) scanFamily(repo *Repository, family, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read family directory %s: %w", dir, err)
	}

	for _, e := range entries {
		if isHidden(e.Name()) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		isDir, err := entryIsDir(path, e)
		if err != nil {
			return err
		}
		if !isDir {
			s.anomaly(repo, path, "file outside of a hardware version directory")
			continue
		}

		hw, err := s.scanHardware(repo, family, e.Name(), path)
		if err != nil {
			return err
		}
		repo.Hardware = append(repo.Hardware, hw)
	}

	return nil
}

func (s *Scanner) scanHardware(repo *Repository, family, hwVersion, dir string) (*Hardware, error) {
	hw := &Hardware{
		Family:  family,
		Version: hwVersion,
		Path:    dir,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read hardware directory %s: %w", dir, err)
	}

	trunk := &Branch{
		Name:     MainBranch,
		Path:     dir,
		Priority: s.resolvePriority(dir),
	}
	hw.Branches = append(hw.Branches, trunk)

	var files []os.DirEntry
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		isDir, err := entryIsDir(path, e)
		if err != nil {
			return nil, err
		}
		if !isDir {
			files = append(files, e)
			continue
		}
		if isHidden(e.Name()) {
			continue
		}

		branch, err := s.scanBranch(repo, e.Name(), path)
		if err != nil {
			return nil, err
		}
		if branch != nil {
			hw.Branches = append(hw.Branches, branch)
		}
	}

	hw.Boards = s.collectFiles(repo, dir, files, trunk)
	trunk.Boards = hw.Boards

	slices.SortStableFunc(hw.Branches, CompareBranches)

	return hw, nil
}

// scanBranch returns nil when the branch carries an ignore marker.
func (s *Scanner) scanBranch(repo *Repository, name, dir string) (*Branch, error) {
	ignored, err := exists(filepath.Join(dir, IgnoreFile))
	if err != nil {
		return nil, err
	}
	if ignored {
		s.logger.Debug("ignoring branch", "path", dir)
		return nil, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read branch directory %s: %w", dir, err)
	}

	branch := &Branch{
		Name:     name,
		Path:     dir,
		Priority: s.resolvePriority(dir),
	}

	var files []os.DirEntry
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		isDir, err := entryIsDir(path, e)
		if err != nil {
			return nil, err
		}
		if isDir {
			s.anomaly(repo, path, "unexpected directory in branch")
			continue
		}
		files = append(files, e)
	}

	branch.Boards = s.collectFiles(repo, dir, files, branch)

	return branch, nil
}

// collectFiles classifies the files of one directory, adding firmware to
// branch and returning the board files. Notice files are attached to the
// firmware with the same version.
func (s *Scanner) collectFiles(repo *Repository, dir string, files []os.DirEntry, branch *Branch) []*Board {
	var boards []*Board
	notices := make(map[string]string)
	skipped := make(map[string]bool)

	for _, e := range files {
		path := filepath.Join(dir, e.Name())
		info := Classify(e.Name())

		switch info.Kind {
		case KindFirmware:
			if s.blacklisted(info.Version) {
				s.logger.Debug("skipping blacklisted firmware", "path", path, "version", info.Version)
				skipped[info.Version] = true
				continue
			}
			branch.Firmware = append(branch.Firmware, &Firmware{
				Version: info.Version,
				API:     info.API,
				Path:    path,
			})
		case KindBoard:
			boards = append(boards, &Board{Path: path, API: info.API})
		case KindNotice:
			notices[info.Version] = path
		case KindPriority, KindIgnore:
			// sidecars, handled when the branch is created
		default:
			if isHidden(e.Name()) {
				continue
			}
			s.anomaly(repo, path, "unrecognized file")
		}
	}

	versions := make([]string, 0, len(notices))
	for v := range notices {
		versions = append(versions, v)
	}
	slices.Sort(versions)

	for _, v := range versions {
		attached := false
		for _, fw := range branch.Firmware {
			if fw.Version == v {
				fw.NoticePath = notices[v]
				attached = true
			}
		}
		if !attached && !skipped[v] {
			s.anomaly(repo, notices[v], "notice file without matching firmware")
		}
	}

	sortFirmware(branch.Firmware)
	sortBoards(boards)

	return boards
}

// resolvePriority reads the .priority sidecar in dir. A missing file yields
// DefaultPriority silently; an unreadable or malformed one is logged.
func (s *Scanner) resolvePriority(dir string) int {
	path := filepath.Join(dir, PriorityFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read priority file, using default", "path", path, "error", err)
		}
		return DefaultPriority
	}

	p, err := ParsePriority(data)
	if err != nil {
		s.logger.Warn("malformed priority file, using default", "path", path, "error", err)
		return DefaultPriority
	}

	return p
}

func (s *Scanner) blacklisted(version string) bool {
	for _, pattern := range s.blacklist {
		if ok, err := doublestar.Match(pattern, version); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Scanner) anomaly(repo *Repository, path, reason string) {
	s.logger.Warn(reason, "path", path)
	repo.Anomalies = append(repo.Anomalies, path)
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// entryIsDir resolves symlinks so that a linked directory counts as a directory.
func entryIsDir(path string, e os.DirEntry) (bool, error) {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.IsDir(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return info.IsDir(), nil
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
