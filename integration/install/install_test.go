//go:build integration

package install

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
)

const (
	firmwareRepo = "firmware"
	destRepo     = "linux-firmware"
	configFile   = "config.yaml"

	whence = `Driver: ath10k - Qualcomm Atheros 802.11ac wireless driver

File: ath10k/QCA988X/hw2.0/board.bin

Licence: Redistributable. See LICENSE.QualcommAtheros_ath10k for details
`
)

func TestInstall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	h := NewHarness(t)
	if err := h.BuildBinary(ctx); err != nil {
		t.Fatalf("build binary: %v", err)
	}

	setupRepos(t, h, ctx)
	writeConfig(t, h)

	t.Run("A_InitialInstall", func(t *testing.T) {
		testInitialInstall(t, h, ctx)
	})

	t.Run("B_NoOpInstall", func(t *testing.T) {
		testNoOpInstall(t, h, ctx)
	})

	t.Run("C_UpdateInstall", func(t *testing.T) {
		testUpdateInstall(t, h, ctx)
	})

	t.Run("D_DryRunMode", func(t *testing.T) {
		testDryRunMode(t, h, ctx)
	})

	t.Run("E_Lookups", func(t *testing.T) {
		testLookups(t, h, ctx)
	})
}

// setupRepos creates the firmware source repository and a linux-firmware
// destination holding only the manifest.
func setupRepos(t *testing.T, h *Harness, ctx context.Context) {
	t.Helper()

	src := h.Path(firmwareRepo)
	h.InitRepo(ctx, src)
	h.WriteFile(firmwareRepo+"/QCA6174/hw3.0/firmware-2.bin_1.0.0", "fw 1.0.0")
	h.WriteFile(firmwareRepo+"/QCA6174/hw3.0/firmware-2.bin_1.2.0", "fw 1.2.0")
	h.WriteFile(firmwareRepo+"/QCA6174/hw3.0/notice.txt_1.2.0", "notice 1.2.0")
	h.WriteFile(firmwareRepo+"/QCA6174/hw3.0/board-2.bin", "board")
	h.Git(ctx, src, "add", "-A")
	h.Git(ctx, src, "commit", "-m", "Initial firmware")

	dest := h.Path(destRepo)
	h.InitRepo(ctx, dest)
	h.WriteFile(destRepo+"/WHENCE", whence)
	h.Git(ctx, dest, "add", "WHENCE")
	h.Git(ctx, dest, "commit", "-m", "Initial commit")
}

func writeConfig(t *testing.T, h *Harness) {
	t.Helper()

	h.WriteFile(configFile, fmt.Sprintf(`repo:
  url: %s
  ref: main

paths:
  dest_dir: %s
  state_dir: %s

install:
  subdir: ath10k
  commit: true
`, h.Path(firmwareRepo), h.Path(destRepo), h.Path("state")))
}

func run(t *testing.T, h *Harness, ctx context.Context, args ...string) string {
	t.Helper()
	return h.MustRun(ctx, append([]string{"--config", h.Path(configFile)}, args...)...)
}

func subjects(h *Harness, ctx context.Context) []string {
	return strings.Split(h.Git(ctx, h.Path(destRepo), "log", "--format=%s"), "\n")
}

// testInitialInstall installs into the empty destination and commits every
// artifact separately.
func testInitialInstall(t *testing.T, h *Harness, ctx context.Context) {
	out := run(t, h, ctx, "install")
	if !strings.Contains(out, "2 added, 0 updated, 0 unchanged") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	if got := h.ReadFile(destRepo + "/ath10k/QCA6174/hw3.0/firmware-2.bin"); got != "fw 1.2.0" {
		t.Errorf("installed firmware = %q, want %q", got, "fw 1.2.0")
	}
	if got := h.ReadFile(destRepo + "/ath10k/QCA6174/hw3.0/notice_ath10k_firmware-2.txt"); got != "notice 1.2.0" {
		t.Errorf("installed notice = %q", got)
	}

	manifest := h.ReadFile(destRepo + "/WHENCE")
	wantEntry := "File: ath10k/QCA988X/hw2.0/board.bin\n" +
		"File: ath10k/QCA6174/hw3.0/firmware-2.bin\n" +
		"Version: 1.2.0\n" +
		"File: ath10k/QCA6174/hw3.0/notice_ath10k_firmware-2.txt\n"
	if !strings.Contains(manifest, wantEntry) {
		t.Errorf("manifest missing entry:\n%s", manifest)
	}

	want := []string{
		"ath10k: QCA6174 hw3.0: add board-2.bin",
		"ath10k: QCA6174 hw3.0: add firmware-2.bin 1.2.0",
		"Initial commit",
	}
	if got := subjects(h, ctx); strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("commits = %v, want %v", got, want)
	}

	if status := h.Git(ctx, h.Path(destRepo), "status", "--porcelain"); status != "" {
		t.Errorf("destination has uncommitted changes:\n%s", status)
	}
}

// testNoOpInstall re-runs the install without source changes.
func testNoOpInstall(t *testing.T, h *Harness, ctx context.Context) {
	head := h.Git(ctx, h.Path(destRepo), "rev-parse", "HEAD")
	manifest := h.ReadFile(destRepo + "/WHENCE")

	out := run(t, h, ctx, "install")
	if strings.TrimSpace(out) != "0 added, 0 updated, 2 unchanged" {
		t.Errorf("unexpected output:\n%s", out)
	}

	if got := h.Git(ctx, h.Path(destRepo), "rev-parse", "HEAD"); got != head {
		t.Errorf("no-op install created commit %s", got)
	}
	if got := h.ReadFile(destRepo + "/WHENCE"); got != manifest {
		t.Errorf("no-op install changed the manifest:\n%s", got)
	}
}

// testUpdateInstall replaces 1.2.0 by 1.3.0 in the source repository.
func testUpdateInstall(t *testing.T, h *Harness, ctx context.Context) {
	src := h.Path(firmwareRepo)
	h.Git(ctx, src, "rm", "-q", "QCA6174/hw3.0/firmware-2.bin_1.2.0")
	h.WriteFile(firmwareRepo+"/QCA6174/hw3.0/firmware-2.bin_1.3.0", "fw 1.3.0")
	h.Git(ctx, src, "add", "-A")
	h.Git(ctx, src, "commit", "-m", "Update firmware")

	out := run(t, h, ctx, "install")
	if !strings.Contains(out, "update ath10k/QCA6174/hw3.0/firmware-2.bin 1.3.0") {
		t.Errorf("expected update in output:\n%s", out)
	}

	if got := h.ReadFile(destRepo + "/ath10k/QCA6174/hw3.0/firmware-2.bin"); got != "fw 1.3.0" {
		t.Errorf("installed firmware = %q, want %q", got, "fw 1.3.0")
	}

	if got := subjects(h, ctx)[0]; got != "ath10k: QCA6174 hw3.0: update firmware-2.bin to 1.3.0" {
		t.Errorf("last commit = %q", got)
	}

	// Only the Version line of the manifest changed.
	numstat := h.Git(ctx, h.Path(destRepo), "diff", "--numstat", "HEAD~1", "HEAD", "--", "WHENCE")
	if numstat != "1\t1\tWHENCE" {
		t.Errorf("manifest diff = %q", numstat)
	}
	if !strings.Contains(h.ReadFile(destRepo+"/WHENCE"), "File: ath10k/QCA6174/hw3.0/firmware-2.bin\nVersion: 1.3.0\n") {
		t.Errorf("manifest not updated")
	}
}

// testDryRunMode plans a new hardware target without touching the destination.
func testDryRunMode(t *testing.T, h *Harness, ctx context.Context) {
	src := h.Path(firmwareRepo)
	h.WriteFile(firmwareRepo+"/QCA9377/hw1.0/firmware-6.bin_WLAN.TF.1.0-00267-1", "fw")
	h.Git(ctx, src, "add", "-A")
	h.Git(ctx, src, "commit", "-m", "Add QCA9377")

	head := h.Git(ctx, h.Path(destRepo), "rev-parse", "HEAD")

	out := run(t, h, ctx, "install", "--dry-run")
	if !strings.Contains(out, "would add    ath10k/QCA9377/hw1.0/firmware-6.bin WLAN.TF.1.0-00267-1") {
		t.Errorf("expected planned add in output:\n%s", out)
	}

	if h.FileExists(destRepo + "/ath10k/QCA9377") {
		t.Error("dry-run installed files")
	}
	if got := h.Git(ctx, h.Path(destRepo), "rev-parse", "HEAD"); got != head {
		t.Error("dry-run created a commit")
	}
}

func testLookups(t *testing.T, h *Harness, ctx context.Context) {
	if got := run(t, h, ctx, "get-latest", "QCA6174", "hw3.0"); got != "1.3.0\n" {
		t.Errorf("get-latest = %q", got)
	}
	if got := run(t, h, ctx, "get-latest-in-branch", "QCA9377", "hw1.0", "."); got != "WLAN.TF.1.0-00267-1\n" {
		t.Errorf("get-latest-in-branch = %q", got)
	}

	_, _, exitCode, err := h.Run(ctx, "--config", h.Path(configFile), "get-latest", "QCA6174", "hw9.9")
	if err != nil {
		t.Fatal(err)
	}
	if exitCode == 0 {
		t.Error("expected non-zero exit for unknown hardware")
	}

	// The notice of the removed 1.2.0 build has no firmware any more.
	stdout, _, exitCode, err := h.Run(ctx, "--config", h.Path(configFile), "check")
	if err != nil {
		t.Fatal(err)
	}
	if exitCode != 0 || !strings.Contains(stdout, "notice.txt_1.2.0") {
		t.Errorf("check exit code %d, output:\n%s", exitCode, stdout)
	}

	// Local source override skips the remote checkout.
	if _, err := os.Stat(h.Path("state/repo")); err != nil {
		t.Fatalf("expected checkout in state dir: %v", err)
	}
	if got := run(t, h, ctx, "--source-dir", h.Path(firmwareRepo), "get-latest", "QCA9377", "hw1.0"); got != "WLAN.TF.1.0-00267-1\n" {
		t.Errorf("get-latest with --source-dir = %q", got)
	}
}
