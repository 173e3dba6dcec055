package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Client provides the git operations fwsync needs: fetching the source
// repository and recording installed files in the destination repository.
type Client interface {
	// EnsureCheckout clones or updates a repository to the specified ref
	EnsureCheckout(ctx context.Context, url, ref, destDir string) (string, error)
	// Add stages paths in the work tree at repoDir
	Add(ctx context.Context, repoDir string, paths ...string) error
	// Commit records the staged changes in repoDir
	Commit(ctx context.Context, repoDir, message string) error
}

// ShellClient implements Client by shelling out to the git command
type ShellClient struct{}

// NewShellClient creates a new git client that uses the git command
func NewShellClient() *ShellClient {
	return &ShellClient{}
}

// EnsureCheckout clones or fetches and checks out the specified ref, and
// returns the checked out commit.
func (c *ShellClient) EnsureCheckout(ctx context.Context, url, ref, destDir string) (string, error) {
	exists := false
	if _, err := os.Stat(filepath.Join(destDir, ".git")); err == nil {
		exists = true
	}

	if !exists {
		if err := os.MkdirAll(filepath.Dir(destDir), 0755); err != nil {
			return "", fmt.Errorf("failed to create parent directory: %w", err)
		}
		cmd := exec.CommandContext(ctx, "git", "clone", "--no-checkout", url, destDir)
		if err := c.runCommand(cmd); err != nil {
			return "", fmt.Errorf("git clone failed: %w", err)
		}
	} else {
		cmd := exec.CommandContext(ctx, "git", "-C", destDir, "fetch", "origin")
		if err := c.runCommand(cmd); err != nil {
			return "", fmt.Errorf("git fetch failed: %w", err)
		}
	}

	// Direct checkout covers local branches, tags and hashes; fall back to
	// the remote tracking branch.
	cmd := exec.CommandContext(ctx, "git", "-C", destDir, "checkout", "-f", ref)
	if err := c.runCommand(cmd); err != nil {
		cmd = exec.CommandContext(ctx, "git", "-C", destDir, "checkout", "-f", "origin/"+ref)
		if err := c.runCommand(cmd); err != nil {
			return "", fmt.Errorf("git checkout failed for ref %q (tried both direct and remote): %w", ref, err)
		}
	}

	// A local branch is stale after fetch. Ignored for tags and hashes.
	if exists {
		resetCmd := exec.CommandContext(ctx, "git", "-C", destDir, "reset", "--hard", "origin/"+ref)
		_ = c.runCommand(resetCmd)
	}

	cmd = exec.CommandContext(ctx, "git", "-C", destDir, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// Add stages the given paths. Paths may be absolute or relative to repoDir.
func (c *ShellClient) Add(ctx context.Context, repoDir string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"-C", repoDir, "add", "--"}, paths...)
	cmd := exec.CommandContext(ctx, "git", args...)
	if err := c.runCommand(cmd); err != nil {
		return fmt.Errorf("git add failed: %w", err)
	}
	return nil
}

// Commit commits the staged changes with the given message.
func (c *ShellClient) Commit(ctx context.Context, repoDir, message string) error {
	cmd := exec.CommandContext(ctx, "git", "-C", repoDir, "commit", "--quiet", "-m", message)
	if err := c.runCommand(cmd); err != nil {
		return fmt.Errorf("git commit failed: %w", err)
	}
	return nil
}

// runCommand executes a command and returns an error with its output on failure
func (c *ShellClient) runCommand(cmd *exec.Cmd) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
