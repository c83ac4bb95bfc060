// Package exec runs external helper binaries and returns their trimmed output.
package exec

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs name with args and returns its standard output.
type Runner func(name string, args ...string) (string, error)

// Command runs name with args, waiting for it to finish. The returned output
// has its trailing newlines removed; on failure the error carries stderr.
func Command(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimRight(stdout.String(), "\r\n"), nil
}

// LookPath reports whether name resolves to an executable in PATH.
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
