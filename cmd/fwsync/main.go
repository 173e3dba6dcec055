package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/schaermu/fwsync/internal/config"
	"github.com/schaermu/fwsync/internal/git"
	"github.com/schaermu/fwsync/internal/repo"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	sourceDir string
	destDir   string

	// Install flags
	dryRun      bool
	forceCommit bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fwsync",
	Short: "Install the latest ath10k firmware into a linux-firmware tree",
	Long: `fwsync scans a firmware repository laid out as
<family>/<hwversion>/[<branch>/]firmware-<api>.bin_<version>, picks the latest
firmware of the highest priority branch for every hardware target and installs
it into a linux-firmware checkout, keeping the WHENCE manifest up to date.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "fwsync %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/fwsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&sourceDir, "source-dir", "", "local firmware repository (overrides paths.source_dir and repo.url)")
	rootCmd.PersistentFlags().StringVar(&destDir, "dest-dir", "", "linux-firmware checkout to install into (overrides paths.dest_dir)")

	// Install command flags
	installCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")
	installCmd.Flags().BoolVar(&forceCommit, "commit", false, "stage and commit every installed file with git")

	// Add commands
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(listExternalCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(getLatestInBranchCmd)
	rootCmd.AddCommand(getLatestCmd)
	rootCmd.AddCommand(versionCmd)
}

func setupLogger() *slog.Logger {
	// Parse log level
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Logs go to stderr, stdout carries command output.
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func defaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "fwsync", "config.yaml")
}

// loadConfig reads the config file, applies flag overrides and validates the
// result. A missing default config file is not an error.
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = defaultConfigPath()
	}

	cfg, err := config.Read(configPath)
	switch {
	case err == nil:
		logger.Debug("loaded configuration", "path", configPath)
	case cfgFile == "" && errors.Is(err, fs.ErrNotExist):
		logger.Debug("no configuration file, using defaults", "path", configPath)
		cfg = &config.Config{}
	default:
		return nil, err
	}

	if sourceDir != "" {
		cfg.Repo = config.RepoConfig{}
		cfg.Paths.SourceDir = sourceDir
	}
	if destDir != "" {
		cfg.Paths.DestDir = destDir
	}

	if err := cfg.Prepare(); err != nil {
		return nil, err
	}

	logger.Debug("configuration prepared",
		"repo", cfg.Repo.URL,
		"ref", cfg.Repo.Ref,
		"source_dir", cfg.SourceDir(),
		"dest_dir", cfg.Paths.DestDir,
		"driver", cfg.Install.Driver)

	return cfg, nil
}

// openRepository checks out the remote repository if one is configured and
// scans the firmware source. The blacklist is only applied for installs.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger, blacklist []string) (*repo.Repository, error) {
	if cfg.Repo.URL != "" {
		head, err := git.NewShellClient().EnsureCheckout(ctx, cfg.Repo.URL, cfg.Repo.Ref, cfg.RepoDir())
		if err != nil {
			return nil, fmt.Errorf("failed to check out firmware repository: %w", err)
		}
		logger.Info("firmware repository checked out", "url", cfg.Repo.URL, "ref", cfg.Repo.Ref, "commit", head)
	}

	if cfg.SourceDir() == "" {
		return nil, errors.New("no firmware source configured, set paths.source_dir or repo.url or pass --source-dir")
	}

	r, err := repo.NewScanner(logger, blacklist).Scan(cfg.SourceDir())
	if err != nil {
		return nil, fmt.Errorf("failed to scan firmware repository: %w", err)
	}
	return r, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
