// Package daemonctl implements the CLI's `daemon {start,stop,restart,status}`
// subcommands: spawning/signalling the dskidxd process and probing it
// over the same socket the IPC client uses. New code (the teacher has
// no analogous daemon-management surface), written in the teacher's
// plain os/exec + os.Signal style.
package daemonctl

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dskidx/dskidx/client"
)

// Start launches daemonBinary detached from the calling process and
// records its pid at pidPath. It does not wait for the socket to become
// ready; callers that need warmup-before-use should issue a warmup
// request with retry.
func Start(daemonBinary, pidPath string) (int, error) {
	path, err := exec.LookPath(daemonBinary)
	if err != nil {
		return 0, fmt.Errorf("locating %s: %w", daemonBinary, err)
	}

	cmd := exec.Command(path)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting daemon: %w", err)
	}

	pid := cmd.Process.Pid
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0o600); err != nil {
		return pid, fmt.Errorf("writing pid file: %w", err)
	}
	return pid, nil
}

// Stop asks the daemon at socketPath to shut down gracefully. If no
// daemon answers, it falls back to signalling the pid recorded at
// pidPath.
func Stop(socketPath, pidPath string) error {
	if c, err := client.Dial(socketPath); err == nil {
		defer c.Close()
		_, err := c.Shutdown()
		return err
	}

	pid, err := readPID(pidPath)
	if err != nil {
		return fmt.Errorf("no daemon reachable and no pid file: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

// Restart stops the daemon (best-effort) and starts a fresh one.
func Restart(daemonBinary, socketPath, pidPath string) (int, error) {
	_ = Stop(socketPath, pidPath)
	time.Sleep(200 * time.Millisecond)
	return Start(daemonBinary, pidPath)
}

// Status reports whether the daemon is reachable and, if so, the
// in-daemon published-index count from its status response.
type StatusResult struct {
	Running       bool
	HasIndexCount int
}

func Status(socketPath string) (StatusResult, error) {
	c, err := client.Dial(socketPath)
	if err != nil {
		return StatusResult{Running: false}, nil
	}
	defer c.Close()

	resp, err := c.Status()
	if err != nil {
		return StatusResult{Running: false}, nil
	}
	return StatusResult{Running: true, HasIndexCount: resp.HasIndexCount}, nil
}

func readPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
