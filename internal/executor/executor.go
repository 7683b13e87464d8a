// Package executor defines the Executor collaborator boundary and a
// default os/exec-backed implementation. Per spec.md's Out-of-scope
// note, the actual process-spawning behind launch is an abstract
// capability the core only consumes through this interface; the
// default implementation here is grounded on the teacher's
// Server.handleRun (server/server.go), generalized from "exec by
// numeric index" to "exec by resolved Entry/Action".
package executor

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/dskidx/dskidx/internal/model"
)

// Executor spawns the process behind a launch request and reports its
// pid. Implementations must not block past process start.
type Executor interface {
	Launch(entry model.Entry, action *model.Action) (pid int, err error)
}

// Default runs entries with os/exec, matching the teacher's
// terminal-vs-direct branch in Server.handleRun.
type Default struct {
	// TerminalCommand is the terminal emulator used for Terminal=true
	// entries, e.g. "xterm". Empty falls back to "xterm".
	TerminalCommand string
}

// Launch starts entry (or action, if non-nil) as a detached child
// process and returns its pid immediately after Start succeeds.
func (d Default) Launch(entry model.Entry, action *model.Action) (int, error) {
	execLine := entry.Exec
	if action != nil {
		execLine = action.Exec
	}
	execLine = stripFieldCodes(execLine)

	parts := strings.Fields(execLine)
	if len(parts) == 0 {
		return 0, fmt.Errorf("empty exec command")
	}

	var cmd *exec.Cmd
	if entry.Terminal {
		term := d.TerminalCommand
		if term == "" {
			term = "xterm"
		}
		cmd = exec.Command(term, "-e", execLine)
	} else {
		cmd = exec.Command(parts[0], parts[1:]...)
	}

	if entry.WorkingDir != "" {
		cmd.Dir = entry.WorkingDir
	}

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	return cmd.Process.Pid, nil
}

// stripFieldCodes removes freedesktop Exec field codes (%f, %F, %u, %U,
// %d, %D, %n, %N, %i, %c, %k, %v, %m, %%) since this backend launches
// with no file/URL arguments and no desktop-file metadata to inject.
func stripFieldCodes(execLine string) string {
	var b strings.Builder
	for i := 0; i < len(execLine); i++ {
		if execLine[i] == '%' && i+1 < len(execLine) {
			switch execLine[i+1] {
			case 'f', 'F', 'u', 'U', 'd', 'D', 'n', 'N', 'i', 'c', 'k', 'v', 'm':
				i++
				continue
			case '%':
				b.WriteByte('%')
				i++
				continue
			}
		}
		b.WriteByte(execLine[i])
	}
	return strings.TrimSpace(b.String())
}
