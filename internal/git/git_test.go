package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := exec.Command(args[0], args[1:]...).CombinedOutput()
	require.NoError(t, err, "%v: %s", args, out)
	return strings.TrimSpace(string(out))
}

// initRepo creates a repo with an identity configured so commits work.
func initRepo(t *testing.T, dir, branch string) {
	t.Helper()
	run(t, "git", "init", "-b", branch, dir)
	run(t, "git", "-C", dir, "config", "user.email", "test@test.com")
	run(t, "git", "-C", dir, "config", "user.name", "Test")
}

// commitFile creates or overwrites a file and commits it.
func commitFile(t *testing.T, repoDir, content, msg string) {
	t.Helper()
	const name = "QCA6174/hw3.0/firmware-6.bin_1.0"
	path := filepath.Join(repoDir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	run(t, "git", "-C", repoDir, "add", name)
	run(t, "git", "-C", repoDir, "commit", "-m", msg)
}

func TestEnsureCheckout_UpdatesLocalBranch(t *testing.T) {
	requireGit(t)
	ctx := context.Background()

	remoteDir := t.TempDir()
	initRepo(t, remoteDir, "main")
	commitFile(t, remoteDir, "version1\n", "Initial commit")

	cloneDir := filepath.Join(t.TempDir(), "repo")
	client := NewShellClient()
	commit1, err := client.EnsureCheckout(ctx, remoteDir, "main", cloneDir)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(cloneDir, "QCA6174/hw3.0/firmware-6.bin_1.0"))
	require.NoError(t, err)
	assert.Equal(t, "version1\n", string(got))

	commitFile(t, remoteDir, "version2\n", "Update")

	commit2, err := client.EnsureCheckout(ctx, remoteDir, "main", cloneDir)
	require.NoError(t, err)
	assert.NotEqual(t, commit1, commit2, "expected a new commit after update")

	got, err = os.ReadFile(filepath.Join(cloneDir, "QCA6174/hw3.0/firmware-6.bin_1.0"))
	require.NoError(t, err)
	assert.Equal(t, "version2\n", string(got))
}

func TestEnsureCheckout_TagsStillWork(t *testing.T) {
	requireGit(t)
	ctx := context.Background()

	remoteDir := t.TempDir()
	initRepo(t, remoteDir, "main")
	commitFile(t, remoteDir, "tagged\n", "Tagged commit")
	run(t, "git", "-C", remoteDir, "tag", "v1.0")
	commitFile(t, remoteDir, "after-tag\n", "Post-tag commit")

	cloneDir := filepath.Join(t.TempDir(), "repo")
	_, err := NewShellClient().EnsureCheckout(ctx, remoteDir, "v1.0", cloneDir)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(cloneDir, "QCA6174/hw3.0/firmware-6.bin_1.0"))
	require.NoError(t, err)
	assert.Equal(t, "tagged\n", string(got))
}

func TestEnsureCheckout_UnknownRef(t *testing.T) {
	requireGit(t)
	ctx := context.Background()

	remoteDir := t.TempDir()
	initRepo(t, remoteDir, "main")
	commitFile(t, remoteDir, "content\n", "Initial commit")

	_, err := NewShellClient().EnsureCheckout(ctx, remoteDir, "no-such-ref", filepath.Join(t.TempDir(), "repo"))
	assert.ErrorContains(t, err, "git checkout failed")
}

func TestAddAndCommit(t *testing.T) {
	requireGit(t)
	ctx := context.Background()

	repoDir := t.TempDir()
	initRepo(t, repoDir, "main")

	fw := filepath.Join(repoDir, "QCA6174", "hw3.0", "firmware-2.bin")
	require.NoError(t, os.MkdirAll(filepath.Dir(fw), 0755))
	require.NoError(t, os.WriteFile(fw, []byte("fw"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(repoDir, "WHENCE"), []byte("Driver: ath10k\n"), 0644))

	client := NewShellClient()
	require.NoError(t, client.Add(ctx, repoDir, fw, "WHENCE"))
	require.NoError(t, client.Commit(ctx, repoDir, "ath10k: QCA6174 hw3.0: add firmware-2.bin 1.2.0"))

	assert.Equal(t, "ath10k: QCA6174 hw3.0: add firmware-2.bin 1.2.0", run(t, "git", "-C", repoDir, "log", "-1", "--format=%s"))
	files := run(t, "git", "-C", repoDir, "show", "--name-only", "--format=", "HEAD")
	assert.Contains(t, files, "QCA6174/hw3.0/firmware-2.bin")
	assert.Contains(t, files, "WHENCE")
}

func TestCommit_NothingStagedFails(t *testing.T) {
	requireGit(t)

	repoDir := t.TempDir()
	initRepo(t, repoDir, "main")

	err := NewShellClient().Commit(context.Background(), repoDir, "empty")
	assert.ErrorContains(t, err, "git commit failed")
}

func TestAdd_NoPaths(t *testing.T) {
	// No git invocation happens without paths.
	assert.NoError(t, NewShellClient().Add(context.Background(), "/nonexistent"))
}
