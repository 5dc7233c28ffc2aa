// Package crontab installs the daily refresh trigger into the system
// crontab. The installed entry calls the running backend over HTTP at
// 09:30 every day, so the refresh also happens when the process is
// started without its in-process scheduler.
package crontab

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/zimmerman-team/the-data-explorer-backend/internal/logger"
)

// Defaults for the installed entry.
const (
	DefaultToken    = "ZIMMERMAN"
	DefaultEndpoint = "http://localhost:5000/backup/update-tgf-datasets"
)

// Entry renders the crontab line for the given token and endpoint. The
// line fires at 09:30 every day and passes the token as the Authorization
// header value.
func Entry(token, endpoint string) string {
	return fmt.Sprintf(`30 9 * * * curl -s -H "Authorization: %s" %s`, token, endpoint)
}

// ValidateToken rejects tokens that would break the crontab line or allow
// command injection through it. Whitespace and shell metacharacters are
// not allowed.
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	if strings.ContainsAny(token, " \t\n\r") {
		return fmt.Errorf("token must not contain whitespace")
	}
	if strings.ContainsAny(token, `"'$&|;<>()`+"`\\") {
		return fmt.Errorf("token must not contain shell metacharacters")
	}
	return nil
}

// Runner reads and writes the invoking user's crontab. Split out so the
// installer can be tested without touching the system crontab.
type Runner interface {
	Current(ctx context.Context) (string, error)
	Write(ctx context.Context, content string) error
}

// SystemRunner shells out to crontab(1).
type SystemRunner struct{}

// Current returns the current crontab content. A user without a crontab
// yields the empty string, not an error.
func (SystemRunner) Current(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "crontab", "-l")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// "no crontab for <user>" goes to stderr with a non-zero exit.
		if strings.Contains(stderr.String(), "no crontab") {
			return "", nil
		}
		return "", fmt.Errorf("failed to read crontab: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Write replaces the crontab with the given content.
func (SystemRunner) Write(ctx context.Context, content string) error {
	cmd := exec.CommandContext(ctx, "crontab", "-")
	cmd.Stdin = strings.NewReader(content)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to write crontab: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Result describes an Install outcome.
type Result struct {
	Entry     string // The rendered crontab line
	Installed bool   // False when the line was already present
}

// Installer manages the refresh entry in the system crontab.
type Installer struct {
	runner Runner
	log    *logger.Logger
}

// NewInstaller creates an installer. A nil runner means the system
// crontab.
func NewInstaller(runner Runner, log *logger.Logger) *Installer {
	if runner == nil {
		runner = SystemRunner{}
	}
	return &Installer{runner: runner, log: log}
}

// Install appends the refresh entry to the crontab unless an identical
// line is already present. Existing entries are preserved verbatim.
func (i *Installer) Install(ctx context.Context, token, endpoint string) (Result, error) {
	if err := ValidateToken(token); err != nil {
		return Result{}, err
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	entry := Entry(token, endpoint)

	current, err := i.runner.Current(ctx)
	if err != nil {
		return Result{}, err
	}

	if containsLine(current, entry) {
		i.log.Info("crontab entry already installed",
			logger.Field{Key: "entry", Value: entry})
		return Result{Entry: entry, Installed: false}, nil
	}

	updated := current
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}
	updated += entry + "\n"

	if err := i.runner.Write(ctx, updated); err != nil {
		return Result{}, err
	}

	i.log.Info("crontab entry installed",
		logger.Field{Key: "entry", Value: entry})
	return Result{Entry: entry, Installed: true}, nil
}

// Installed reports whether the entry for the given token and endpoint is
// present in the crontab.
func (i *Installer) Installed(ctx context.Context, token, endpoint string) (bool, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	current, err := i.runner.Current(ctx)
	if err != nil {
		return false, err
	}
	return containsLine(current, Entry(token, endpoint)), nil
}

func containsLine(content, line string) bool {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}
