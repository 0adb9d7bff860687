package integration

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// CLIVersion is a semantic version reported by the claude CLI.
type CLIVersion struct {
	Major int
	Minor int
	Patch int
}

// String returns the version in semver format (e.g., "1.0.33").
func (v CLIVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v CLIVersion) Compare(other CLIVersion) int {
	for _, d := range [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}} {
		if d[0] < d[1] {
			return -1
		}
		if d[0] > d[1] {
			return 1
		}
	}
	return 0
}

// MinStreamJSONVersion is the oldest claude CLI whose print mode supports
// --output-format stream-json together with --verbose.
var MinStreamJSONVersion = CLIVersion{Major: 1, Minor: 0, Patch: 0}

// CLIVersionChecker detects the installed claude CLI version.
type CLIVersionChecker interface {
	// DetectVersion runs `<binary> --version` and parses the output.
	DetectVersion(ctx context.Context) (*CLIVersion, error)
	// CheckMinimumVersion returns an error if the detected version is less than min.
	CheckMinimumVersion(ctx context.Context, min CLIVersion) error
}

// cliVersionChecker implements CLIVersionChecker.
type cliVersionChecker struct {
	executor      CLIExecutor
	binary        string
	cachedVersion *CLIVersion
}

// NewCLIVersionChecker creates a CLIVersionChecker for binary.
func NewCLIVersionChecker(executor CLIExecutor, binary string) CLIVersionChecker {
	if binary == "" {
		binary = "claude"
	}
	return &cliVersionChecker{executor: executor, binary: binary}
}

var versionPattern = regexp.MustCompile(`v?(\d+)\.(\d+)\.(\d+)`)

// ParseVersionString finds the first MAJOR.MINOR.PATCH in s, as in
// "1.0.33 (Claude Code)".
func ParseVersionString(s string) (*CLIVersion, error) {
	matches := versionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return nil, fmt.Errorf("invalid version string %q: expected MAJOR.MINOR.PATCH", s)
	}

	major, _ := strconv.Atoi(matches[1])
	minor, _ := strconv.Atoi(matches[2])
	patch, _ := strconv.Atoi(matches[3])

	return &CLIVersion{Major: major, Minor: minor, Patch: patch}, nil
}

func (c *cliVersionChecker) DetectVersion(ctx context.Context) (*CLIVersion, error) {
	if c.cachedVersion != nil {
		return c.cachedVersion, nil
	}

	result, err := c.executor.Exec(ctx, CLIExecConfig{
		Command: c.binary,
		Args:    []string{"--version"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting %s version: %w", c.binary, err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("detecting %s version: exit code %d: %s", c.binary, result.ExitCode, strings.TrimSpace(result.Combined))
	}

	version, err := ParseVersionString(result.Stdout)
	if err != nil {
		return nil, fmt.Errorf("parsing version output %q: %w", result.Stdout, err)
	}

	c.cachedVersion = version
	return version, nil
}

func (c *cliVersionChecker) CheckMinimumVersion(ctx context.Context, min CLIVersion) error {
	detected, err := c.DetectVersion(ctx)
	if err != nil {
		return err
	}

	if detected.Compare(min) < 0 {
		return fmt.Errorf("%s version %s is less than required minimum %s", c.binary, detected, min)
	}

	return nil
}
