package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schaermu/fwsync/internal/config"
	"github.com/schaermu/fwsync/internal/git"
	"github.com/schaermu/fwsync/internal/manifest"
	"github.com/schaermu/fwsync/internal/repo"
)

// ErrInvalidDestination is returned when the destination root is missing or
// not a directory.
var ErrInvalidDestination = errors.New("invalid destination directory")

// Engine installs the latest firmware of a repository into a destination tree
type Engine struct {
	cfg    *config.Config
	git    git.Client
	logger *slog.Logger
	dryRun bool
}

// NewEngine creates a new install engine
func NewEngine(cfg *config.Config, gitClient git.Client, logger *slog.Logger, dryRun bool) *Engine {
	return &Engine{
		cfg:    cfg,
		git:    gitClient,
		logger: logger,
		dryRun: dryRun,
	}
}

// Install compares the latest firmware and the board files of every hardware
// target with the destination tree and copies what is missing or different.
// Unchanged files cause no side effects at all, so repeated runs are no-ops.
func (e *Engine) Install(ctx context.Context, r *repo.Repository) (*Plan, error) {
	e.logger.Info("starting install",
		"source", r.Root,
		"dest", e.cfg.Paths.DestDir,
		"dry_run", e.dryRun,
		"commit", e.cfg.Install.Commit)

	if err := e.checkDestination(); err != nil {
		return nil, err
	}

	plan, err := e.buildPlan(r)
	if err != nil {
		return nil, fmt.Errorf("failed to build install plan: %w", err)
	}

	e.logger.Info("install plan",
		"add", len(plan.Add),
		"update", len(plan.Update),
		"unchanged", len(plan.Unchanged))

	if e.dryRun {
		e.logPlanDetails(plan)
		e.logger.Info("dry-run complete, no changes applied")
		return plan, nil
	}

	if err := e.applyPlan(ctx, plan); err != nil {
		return plan, fmt.Errorf("failed to apply install plan: %w", err)
	}

	e.logger.Info("install completed successfully")
	return plan, nil
}

func (e *Engine) checkDestination() error {
	info, err := os.Stat(e.cfg.Paths.DestDir)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidDestination, e.cfg.Paths.DestDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidDestination, e.cfg.Paths.DestDir)
	}
	return nil
}

// buildPlan decides add/update/unchanged for every artifact
func (e *Engine) buildPlan(r *repo.Repository) (*Plan, error) {
	plan := &Plan{}

	for _, hw := range r.Hardware {
		destDir := filepath.Join(e.cfg.InstallDir(), hw.RelDir())

		if fw, ok := hw.LatestFirmware(); ok {
			op := FileOp{
				Kind:       KindFirmware,
				Hardware:   hw,
				SourcePath: fw.Path,
				DestPath:   filepath.Join(destDir, fw.InstallName()),
				Version:    fw.Version,
			}
			if fw.NoticePath != "" {
				op.NoticeSource = fw.NoticePath
				op.NoticeDest = filepath.Join(destDir, e.noticeName(fw))
			}

			action, err := classify(op.SourcePath, op.DestPath)
			if err != nil {
				return nil, err
			}
			op.Action = action
			plan.record(op)
		} else {
			e.logger.Debug("no firmware available", "hardware", hw.ID())
		}

		for _, board := range hw.Boards {
			op := FileOp{
				Kind:       KindBoard,
				Hardware:   hw,
				SourcePath: board.Path,
				DestPath:   filepath.Join(destDir, board.Name()),
			}

			action, err := classify(op.SourcePath, op.DestPath)
			if err != nil {
				return nil, err
			}
			op.Action = action
			plan.record(op)
		}
	}

	return plan, nil
}

// noticeName returns the installed name of a firmware's notice file, e.g.
// notice_ath10k_firmware-5.txt.
func (e *Engine) noticeName(fw *repo.Firmware) string {
	return fmt.Sprintf("notice_%s_firmware-%d.txt", e.cfg.Install.Driver, fw.API)
}

// classify compares a source file with its destination by content
func classify(src, dst string) (Action, error) {
	info, err := os.Stat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		return ActionAdd, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", dst, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("destination %s is a directory", dst)
	}

	same, err := sameContent(src, dst)
	if err != nil {
		return "", err
	}
	if same {
		return ActionUnchanged, nil
	}
	return ActionUpdate, nil
}

// applyPlan executes the install plan, one artifact at a time
func (e *Engine) applyPlan(ctx context.Context, plan *Plan) error {
	for _, op := range plan.Changes() {
		if err := e.apply(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, op FileOp) error {
	e.logger.Info(fmt.Sprintf("%s %s", actionVerb(op.Action), op.Kind),
		"hardware", op.Hardware.ID(),
		"dest", op.DestPath,
		"version", op.Version)

	if err := e.copyFile(op.SourcePath, op.DestPath); err != nil {
		return fmt.Errorf("failed to install %s: %w", op.DestPath, err)
	}
	changed := []string{op.DestPath}

	if op.NoticeSource != "" {
		if err := e.copyFile(op.NoticeSource, op.NoticeDest); err != nil {
			return fmt.Errorf("failed to install %s: %w", op.NoticeDest, err)
		}
		changed = append(changed, op.NoticeDest)
	}

	// Board files are not recorded in the manifest.
	if op.Kind == KindFirmware {
		patched, err := e.patchManifest(op)
		if err != nil {
			return err
		}
		if patched {
			changed = append(changed, e.cfg.ManifestPath())
		}
	}

	if !e.cfg.Install.Commit {
		return nil
	}

	if err := e.git.Add(ctx, e.cfg.Paths.DestDir, changed...); err != nil {
		return fmt.Errorf("failed to stage %s: %w", op.DestPath, err)
	}
	if err := e.git.Commit(ctx, e.cfg.Paths.DestDir, e.commitMessage(op)); err != nil {
		return fmt.Errorf("failed to commit %s: %w", op.DestPath, err)
	}
	return nil
}

// patchManifest records an added or updated firmware in the manifest. A
// manifest that is missing or whose anchors do not match exactly once is
// left untouched with a warning.
func (e *Engine) patchManifest(op FileOp) (bool, error) {
	path := e.cfg.ManifestPath()
	file := e.manifestPath(op.DestPath)

	edit := func(text string) (string, error) {
		if op.Action == ActionUpdate || manifest.HasFile(text, file) {
			return manifest.UpdateVersion(text, file, op.Version)
		}
		entry := manifest.Entry{File: file, Version: op.Version}
		if op.NoticeDest != "" {
			entry.Notice = e.manifestPath(op.NoticeDest)
		}
		return manifest.AddEntry(text, e.cfg.Install.Driver, entry)
	}

	patched, err := manifest.Patch(path, edit)
	switch {
	case err == nil:
		return patched, nil
	case errors.Is(err, manifest.ErrNoMatch),
		errors.Is(err, manifest.ErrAmbiguousMatch),
		errors.Is(err, fs.ErrNotExist):
		e.logger.Warn("failed to update manifest, leaving it untouched",
			"manifest", path,
			"file", file,
			"error", err)
		return false, nil
	default:
		return false, fmt.Errorf("failed to update manifest: %w", err)
	}
}

// manifestPath returns the slash separated path of dest relative to the
// destination root, as it appears in File: lines.
func (e *Engine) manifestPath(dest string) string {
	rel, err := filepath.Rel(e.cfg.Paths.DestDir, dest)
	if err != nil {
		return filepath.ToSlash(dest)
	}
	return filepath.ToSlash(rel)
}

func (e *Engine) commitMessage(op FileOp) string {
	name := filepath.Base(op.DestPath)
	prefix := fmt.Sprintf("%s: %s %s:", e.cfg.Install.Driver, op.Hardware.Family, op.Hardware.Version)

	switch {
	case op.Kind == KindBoard:
		return fmt.Sprintf("%s %s %s", prefix, op.Action, name)
	case op.Action == ActionAdd:
		return fmt.Sprintf("%s add %s %s", prefix, name, op.Version)
	default:
		return fmt.Sprintf("%s update %s to %s", prefix, name, op.Version)
	}
}

// logPlanDetails logs detailed plan information for dry-run
func (e *Engine) logPlanDetails(plan *Plan) {
	for _, op := range plan.Add {
		e.logger.Info("[dry-run] would add", "kind", op.Kind, "dest", op.DestPath, "source", op.SourcePath, "version", op.Version)
	}
	for _, op := range plan.Update {
		e.logger.Info("[dry-run] would update", "kind", op.Kind, "dest", op.DestPath, "source", op.SourcePath, "version", op.Version)
	}
	for _, op := range plan.Unchanged {
		e.logger.Debug("[dry-run] unchanged", "kind", op.Kind, "dest", op.DestPath)
	}
}

func actionVerb(a Action) string {
	if a == ActionAdd {
		return "adding"
	}
	return "updating"
}

// copyFile copies a file from src to dst with atomic write
func (e *Engine) copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".fwsync-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return err
	}

	srcInfo, err := srcFile.Stat()
	if err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Chmod(srcInfo.Mode()); err != nil {
		_ = tmpFile.Close()
		return err
	}

	if err := tmpFile.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, dst)
}

// sameContent reports whether two files hold identical bytes
func sameContent(a, b string) (bool, error) {
	ai, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	bi, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	if ai.Size() != bi.Size() {
		return false, nil
	}

	ah, err := fileHash(a)
	if err != nil {
		return false, err
	}
	bh, err := fileHash(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ah, bh), nil
}

// fileHash computes the SHA256 hash of a file
func fileHash(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}
