package repo

import (
	"fmt"
	"slices"
)

// LatestBranch returns the most preferred branch of the target. The main
// branch is only chosen when no other branch exists.
func (h *Hardware) LatestBranch() *Branch {
	if len(h.Branches) == 0 {
		return nil
	}
	return slices.MaxFunc(h.Branches, CompareBranches)
}

// Branch looks up a branch by name, bypassing priority selection.
func (h *Hardware) Branch(name string) (*Branch, error) {
	for _, b := range h.Branches {
		if b.Name == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrBranchNotFound, name, h.ID())
}

// LatestFirmware returns the newest firmware of the most preferred branch.
// ok is false when that branch holds no firmware.
func (h *Hardware) LatestFirmware() (fw *Firmware, ok bool) {
	b := h.LatestBranch()
	if b == nil {
		return nil, false
	}
	return b.Latest()
}

// Latest returns the newest firmware in the branch. ok is false for an
// empty branch.
func (b *Branch) Latest() (fw *Firmware, ok bool) {
	if len(b.Firmware) == 0 {
		return nil, false
	}
	return slices.MaxFunc(b.Firmware, CompareFirmware), true
}
