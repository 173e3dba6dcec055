package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/schaermu/fwsync/internal/fwinfo"
	"github.com/schaermu/fwsync/internal/git"
	"github.com/schaermu/fwsync/internal/repo"
	"github.com/schaermu/fwsync/internal/sync"
)

const noFirmware = "no firmware available"

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Scan the firmware repository and report unrecognized files",
	Long: `Check scans the firmware repository without installing anything. Every
path that does not fit the repository layout is printed. Such paths are
skipped by the other commands and do not make check fail.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print hardware targets, branches, firmware versions and board files",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var listExternalCmd = &cobra.Command{
	Use:   "list-external <dir>",
	Short: "Print the embedded version and checksum of installed firmware",
	Long: `List-external walks an installed tree laid out as <family>/<hwversion>/ and
runs the configured info tool (external.info_tool) on every firmware image.`,
	Args: cobra.ExactArgs(1),
	RunE: runListExternal,
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the latest firmware into the destination tree",
	Long: `Install picks the latest firmware of the highest priority branch for every
hardware target and copies it, with its notice file and the board files, into
the destination tree. The WHENCE manifest is updated for added and updated
firmware. Files that are already up to date are left alone.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

var getLatestInBranchCmd = &cobra.Command{
	Use:   "get-latest-in-branch <family> <hwversion> <branch>",
	Short: "Print the latest firmware version of a branch",
	Args:  cobra.ExactArgs(3),
	RunE:  runGetLatestInBranch,
}

var getLatestCmd = &cobra.Command{
	Use:   "get-latest <family> <hwversion>",
	Short: "Print the latest firmware version of the highest priority branch",
	Args:  cobra.ExactArgs(2),
	RunE:  runGetLatest,
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	r, err := openRepository(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, a := range r.Anomalies {
		fmt.Fprintln(out, a)
	}
	fmt.Fprintf(out, "%d hardware targets, %d anomalies\n", len(r.Hardware), len(r.Anomalies))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	r, err := openRepository(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	printRepository(cmd.OutOrStdout(), r)
	return nil
}

func runListExternal(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	entries, err := fwinfo.ListExternal(ctx, fwinfo.NewShellInspector(cfg.External.InfoTool), args[0], logger)
	if err != nil {
		return err
	}

	return printExternal(cmd.OutOrStdout(), entries)
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if forceCommit {
		cfg.Install.Commit = true
	}

	r, err := openRepository(ctx, cfg, logger, cfg.Install.Blacklist)
	if err != nil {
		return err
	}

	engine := sync.NewEngine(cfg, git.NewShellClient(), logger, dryRun)
	plan, err := engine.Install(ctx, r)
	if err != nil {
		logger.Error("install failed", "error", err)
		return err
	}

	printPlan(cmd.OutOrStdout(), plan, cfg.Paths.DestDir, dryRun)
	return nil
}

func runGetLatestInBranch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	r, err := openRepository(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	hw, err := r.Lookup(args[0], args[1])
	if err != nil {
		return err
	}
	branch, err := hw.Branch(args[2])
	if err != nil {
		return err
	}

	fw, ok := branch.Latest()
	printLatest(cmd.OutOrStdout(), fw, ok)
	return nil
}

func runGetLatest(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	r, err := openRepository(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	hw, err := r.Lookup(args[0], args[1])
	if err != nil {
		return err
	}

	fw, ok := hw.LatestFirmware()
	printLatest(cmd.OutOrStdout(), fw, ok)
	return nil
}

func printLatest(w io.Writer, fw *repo.Firmware, ok bool) {
	if !ok {
		fmt.Fprintln(w, noFirmware)
		return
	}
	fmt.Fprintln(w, fw.Version)
}

// printRepository prints every hardware target with its branches, from least
// to most preferred, and its board files. The firmware that install would
// pick is marked with a star.
func printRepository(w io.Writer, r *repo.Repository) {
	for i, hw := range r.Hardware {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, formatBold(hw.ID()))

		latest, _ := hw.LatestFirmware()
		for _, b := range hw.Branches {
			fmt.Fprintf(w, "  branch %s\n", b)
			if len(b.Firmware) == 0 {
				fmt.Fprintf(w, "    (%s)\n", noFirmware)
			}
			for _, fw := range b.Firmware {
				mark := ""
				if fw == latest {
					mark = " *"
				}
				fmt.Fprintf(w, "    %s%s\n", fw, mark)
			}
		}

		if len(hw.Boards) > 0 {
			fmt.Fprintln(w, "  boards")
			for _, board := range hw.Boards {
				fmt.Fprintf(w, "    %s\n", board.Name())
			}
		}
	}
}

func printExternal(w io.Writer, entries []fwinfo.Entry) error {
	rows := [][]string{{"HARDWARE", "FILE", "VERSION", "CRC32"}}
	for _, e := range entries {
		rows = append(rows, []string{e.ID(), e.Name, e.Info.Version, e.Info.CRC32})
	}

	table, err := renderTable(rows)
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	_, err = fmt.Fprintln(w, table)
	return err
}

func printPlan(w io.Writer, plan *sync.Plan, destDir string, dryRun bool) {
	prefix := ""
	if dryRun {
		prefix = "would "
	}

	for _, op := range plan.Changes() {
		rel, err := filepath.Rel(destDir, op.DestPath)
		if err != nil {
			rel = op.DestPath
		}
		line := fmt.Sprintf("%s%-6s %s", prefix, op.Action, filepath.ToSlash(rel))
		if op.Version != "" {
			line += " " + op.Version
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "%d added, %d updated, %d unchanged\n", len(plan.Add), len(plan.Update), len(plan.Unchanged))
}
