package sync

import (
	"github.com/schaermu/fwsync/internal/repo"
)

// Action is the decision taken for one artifact.
type Action string

const (
	ActionAdd       Action = "add"
	ActionUpdate    Action = "update"
	ActionUnchanged Action = "unchanged"
)

// Kind tells firmware and board operations apart.
type Kind string

const (
	KindFirmware Kind = "firmware"
	KindBoard    Kind = "board"
)

// Plan represents the install operations to perform
type Plan struct {
	Add       []FileOp
	Update    []FileOp
	Unchanged []FileOp
}

// Changes returns the operations that modify the destination, adds first.
func (p *Plan) Changes() []FileOp {
	ops := make([]FileOp, 0, len(p.Add)+len(p.Update))
	ops = append(ops, p.Add...)
	return append(ops, p.Update...)
}

func (p *Plan) record(op FileOp) {
	switch op.Action {
	case ActionAdd:
		p.Add = append(p.Add, op)
	case ActionUpdate:
		p.Update = append(p.Update, op)
	default:
		p.Unchanged = append(p.Unchanged, op)
	}
}

// FileOp represents the installation of one artifact
type FileOp struct {
	Kind     Kind
	Action   Action
	Hardware *repo.Hardware

	SourcePath string // absolute path in the firmware repository
	DestPath   string // absolute path in the destination tree
	Version    string // firmware only

	// Notice file installed next to the firmware, both empty when absent.
	NoticeSource string
	NoticeDest   string
}
