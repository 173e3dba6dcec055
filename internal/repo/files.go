package repo

import (
	"regexp"
	"strconv"
)

// FileKind classifies a file found in a hardware or branch directory.
type FileKind int

// File kinds recognized by Classify.
const (
	KindUnknown FileKind = iota
	KindFirmware
	KindBoard
	KindNotice
	KindPriority
	KindIgnore
)

func (k FileKind) String() string {
	switch k {
	case KindFirmware:
		return "firmware"
	case KindBoard:
		return "board"
	case KindNotice:
		return "notice"
	case KindPriority:
		return "priority"
	case KindIgnore:
		return "ignore"
	}
	return "unknown"
}

var (
	firmwarePattern = regexp.MustCompile(`^firmware-(\d+)\.bin_(.+)$`)
	boardPattern    = regexp.MustCompile(`^board(?:-(\d+))?\.bin$`)
	noticePattern   = regexp.MustCompile(`^notice\.txt_(.+)$`)
)

// FileInfo is what can be learned about a repository file from its name.
type FileInfo struct {
	Kind    FileKind
	API     int    // firmware and versioned board files
	Version string // firmware and notice files
}

// Classify inspects a file name (not a path) and returns its kind and the
// metadata embedded in it.
func Classify(name string) FileInfo {
	switch name {
	case PriorityFile:
		return FileInfo{Kind: KindPriority}
	case IgnoreFile:
		return FileInfo{Kind: KindIgnore}
	}

	if m := firmwarePattern.FindStringSubmatch(name); m != nil {
		api, err := strconv.Atoi(m[1])
		if err != nil {
			return FileInfo{Kind: KindUnknown}
		}
		return FileInfo{Kind: KindFirmware, API: api, Version: m[2]}
	}

	if m := boardPattern.FindStringSubmatch(name); m != nil {
		info := FileInfo{Kind: KindBoard}
		if m[1] != "" {
			api, err := strconv.Atoi(m[1])
			if err != nil {
				return FileInfo{Kind: KindUnknown}
			}
			info.API = api
		}
		return info
	}

	if m := noticePattern.FindStringSubmatch(name); m != nil {
		return FileInfo{Kind: KindNotice, Version: m[1]}
	}

	return FileInfo{Kind: KindUnknown}
}
