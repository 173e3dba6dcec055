// Package fwinfo reads metadata embedded in installed firmware images with an
// external info tool such as ath10k-fwencoder.
package fwinfo

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Info holds the fields reported by the info tool. Fields the tool does not
// report are left empty.
type Info struct {
	Version string
	CRC32   string
}

// Inspector extracts metadata from a firmware image
type Inspector interface {
	Inspect(ctx context.Context, path string) (Info, error)
}

// ShellInspector implements Inspector by running "<tool> --info <file>"
type ShellInspector struct {
	tool string
}

// NewShellInspector creates an inspector for the given tool name or path
func NewShellInspector(tool string) *ShellInspector {
	return &ShellInspector{tool: tool}
}

// Inspect runs the info tool on path and parses its output
func (s *ShellInspector) Inspect(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, s.tool, "--info", path)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return Info{}, fmt.Errorf("%s --info failed: %w: %s", s.tool, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Info{}, fmt.Errorf("%s --info failed: %w", s.tool, err)
	}
	return parseInfo(string(output)), nil
}

// parseInfo picks the known "Key: value" lines out of the tool output.
func parseInfo(output string) Info {
	var info Info
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "FirmwareVersion":
			info.Version = value
		case "FileCRC32":
			info.CRC32 = value
		}
	}
	return info
}
