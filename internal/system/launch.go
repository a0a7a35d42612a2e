package system

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	log "log/slog"

	"github.com/shirou/gopsutil/v4/process"

	"sysvox/internal/command"
)

// settleDelay gives a launched application time to fork its workers before
// the process-set diff.
const settleDelay = 1500 * time.Millisecond

// launchTargets maps spoken application names to executables. Anything not
// listed is treated as an executable name verbatim.
var launchTargets = map[string]string{
	"browser":    "firefox",
	"firefox":    "firefox",
	"chrome":     "google-chrome",
	"editor":     "gedit",
	"terminal":   "x-terminal-emulator",
	"files":      "nautilus",
	"calculator": "gnome-calculator",
	"music":      "rhythmbox",
}

// ResolveTarget looks a name up in the launch table, falling back to the
// name itself.
func ResolveTarget(name string) string {
	if target, known := launchTargets[strings.ToLower(strings.TrimSpace(name))]; known {
		return target
	}
	return name
}

func (in *Inspector) Launch(ctx context.Context, name string) (command.LaunchReport, error) {
	target := ResolveTarget(name)

	path, err := exec.LookPath(target)
	if err != nil {
		return command.LaunchReport{}, fmt.Errorf("executable %s: %w", target, command.ErrNotFound)
	}

	before, err := process.PidsWithContext(ctx)
	if err != nil {
		return command.LaunchReport{}, fmt.Errorf("snapshot pids: %w", err)
	}
	known := make(map[int32]bool, len(before))
	for _, pid := range before {
		known[pid] = true
	}

	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return command.LaunchReport{}, fmt.Errorf("executable %s: %w", target, command.ErrNotFound)
		}
		return command.LaunchReport{}, fmt.Errorf("start %s: %w", target, err)
	}
	parent := cmd.Process.Pid
	log.Info("Launched application", "target", target, "pid", parent)

	// Reap in the background so a short-lived launcher does not linger as a
	// zombie.
	go func() { _ = cmd.Wait() }()

	select {
	case <-ctx.Done():
		return command.LaunchReport{}, ctx.Err()
	case <-time.After(settleDelay):
	}

	after, err := process.PidsWithContext(ctx)
	if err != nil {
		return command.LaunchReport{Target: target, ParentPID: parent}, nil
	}

	descendants := descendantsOf(ctx, int32(parent), diffPids(known, after))
	return command.LaunchReport{Target: target, ParentPID: parent, Descendants: descendants}, nil
}

// diffPids returns pids present in after but not in the before snapshot.
func diffPids(before map[int32]bool, after []int32) []int32 {
	var fresh []int32
	for _, pid := range after {
		if !before[pid] {
			fresh = append(fresh, pid)
		}
	}
	return fresh
}

// descendantsOf filters the freshly appeared pids down to those whose
// ancestry leads back to parent.
func descendantsOf(ctx context.Context, parent int32, fresh []int32) []int {
	var out []int
	for _, pid := range fresh {
		if pid == parent {
			continue
		}
		if hasAncestor(ctx, pid, parent) {
			out = append(out, int(pid))
		}
	}
	return out
}

func hasAncestor(ctx context.Context, pid, ancestor int32) bool {
	for depth := 0; depth < 16; depth++ {
		p, err := process.NewProcessWithContext(ctx, pid)
		if err != nil {
			return false
		}
		ppid, err := p.PpidWithContext(ctx)
		if err != nil || ppid <= 0 {
			return false
		}
		if ppid == ancestor {
			return true
		}
		pid = ppid
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
