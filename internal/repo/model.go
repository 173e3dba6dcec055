// Package repo models a firmware repository laid out as
// <family>/<hwversion>/[<branch>/]<files> and decides which firmware is the
// latest for every hardware target.
package repo

import (
	"cmp"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/schaermu/fwsync/internal/version"
)

var (
	// ErrHardwareNotFound is returned when a family/hwversion pair is not in the repository.
	ErrHardwareNotFound = errors.New("hardware not found")
	// ErrBranchNotFound is returned when a named branch does not exist for a hardware target.
	ErrBranchNotFound = errors.New("branch not found")
)

// Repository is the in-memory model built by a scan.
type Repository struct {
	Root      string
	Hardware  []*Hardware
	Anomalies []string // paths that were not recognized during the scan
}

// Lookup returns the hardware target for the given family and hardware version.
func (r *Repository) Lookup(family, hwVersion string) (*Hardware, error) {
	for _, hw := range r.Hardware {
		if hw.Family == family && hw.Version == hwVersion {
			return hw, nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrHardwareNotFound, family, hwVersion)
}

// Hardware is a device family at a specific hardware revision, e.g. QCA6174 hw3.0.
type Hardware struct {
	Family  string
	Version string
	Path    string

	// Branches always contains the main branch, kept sorted from least to
	// most preferred.
	Branches []*Branch

	// Boards holds the board files found directly in the hardware version
	// directory. These are the only authoritative board files.
	Boards []*Board
}

// ID returns the identity string of the hardware target.
func (h *Hardware) ID() string {
	return h.Family + " " + h.Version
}

// Equal reports whether both targets have the same identity.
func (h *Hardware) Equal(other *Hardware) bool {
	return h.ID() == other.ID()
}

// RelDir returns the path of the hardware directory relative to a repository root.
func (h *Hardware) RelDir() string {
	return filepath.Join(h.Family, h.Version)
}

func (h *Hardware) String() string {
	return h.ID()
}

// Firmware is a single firmware image, identified by its version string.
type Firmware struct {
	Version    string
	API        int
	Path       string
	NoticePath string // empty when no notice file accompanies the image
}

// InstallName is the fixed name the firmware gets in a destination tree.
func (f *Firmware) InstallName() string {
	return fmt.Sprintf("firmware-%d.bin", f.API)
}

// Equal compares firmware by version only; path and API are ignored.
func (f *Firmware) Equal(other *Firmware) bool {
	return version.Equal(f.Version, other.Version)
}

func (f *Firmware) String() string {
	return fmt.Sprintf("%s (api %d)", f.Version, f.API)
}

// CompareFirmware orders firmware by version.
func CompareFirmware(a, b *Firmware) int {
	return version.Compare(a.Version, b.Version)
}

// Board is a board configuration file. Boards have no ordering and are
// always taken as current.
type Board struct {
	Path string
	API  int // 0 for the unversioned board.bin
}

// Name returns the file name of the board file.
func (b *Board) Name() string {
	return filepath.Base(b.Path)
}

func sortFirmware(fws []*Firmware) {
	slices.SortStableFunc(fws, CompareFirmware)
}

func sortBoards(boards []*Board) {
	slices.SortFunc(boards, func(a, b *Board) int {
		return cmp.Compare(a.Path, b.Path)
	})
}
