// Package command routes decoded directives to the process/system
// collaborator. It owns the fixed command table, strict parameter
// validation, and the prefix recovery for misheard process ids.
package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "log/slog"

	"sysvox/internal/directive"
	"sysvox/internal/session"
)

// Command identifiers the model is instructed to emit.
const (
	CmdTopProcesses = "top_processes"
	CmdKillProcess  = "kill_process"
	CmdKillByName   = "kill_by_name"
	CmdSystemInfo   = "system_info"
	CmdProcessInfo  = "process_info"
	CmdListFiles    = "list_files"
	CmdLaunchApp    = "launch_app"
)

const (
	defaultTopCount = 5
	maxTopCount     = 20
	minTopCount     = 1
	maxAmbiguous    = 5
)

type Dispatcher struct {
	sys  Collaborator
	sess *session.Session
}

func NewDispatcher(sys Collaborator, sess *session.Session) *Dispatcher {
	return &Dispatcher{sys: sys, sess: sess}
}

// Dispatch validates the directive's parameters and invokes exactly one
// collaborator capability. It always returns a Result; collaborator
// failures are interpreted here and nowhere else.
func (d *Dispatcher) Dispatch(ctx context.Context, dir directive.Directive) Result {
	log.Debug("Dispatching", "command", dir.Command)

	switch dir.Command {
	case CmdTopProcesses:
		return d.topProcesses(ctx, dir.Params)
	case CmdKillProcess:
		return d.killProcess(ctx, dir.Params)
	case CmdKillByName:
		return d.killByName(ctx, dir.Params)
	case CmdSystemInfo:
		return d.systemInfo(ctx)
	case CmdProcessInfo:
		return d.processInfo(ctx, dir.Params)
	case CmdListFiles:
		return d.listFiles(ctx, dir.Params)
	case CmdLaunchApp:
		return d.launchApp(ctx, dir.Params)
	default:
		return Result{Status: StatusUnknownCommand, Message: "Unknown command: " + dir.Command}
	}
}

func (d *Dispatcher) topProcesses(ctx context.Context, params map[string]any) Result {
	count := defaultTopCount
	if n, present, bad := intParam(params, "count"); bad.Status != "" {
		return bad
	} else if present {
		count = clamp(n, minTopCount, maxTopCount)
	}

	sortBy := SortCPU
	if s, present, bad := stringParam(params, "sort_by"); bad.Status != "" {
		return bad
	} else if present {
		switch SortKey(strings.ToLower(s)) {
		case SortCPU:
			sortBy = SortCPU
		case SortMemory:
			sortBy = SortMemory
		default:
			return invalid(fmt.Sprintf("Parameter %q must be cpu or memory, got %q", "sort_by", s))
		}
	}

	procs, err := d.sys.TopProcesses(ctx, count, sortBy)
	if err != nil {
		return collabFailure(err, "Could not list processes")
	}

	pids := make([]int, len(procs))
	var b strings.Builder
	fmt.Fprintf(&b, "Top %d processes by %s:\n", len(procs), strings.ToUpper(string(sortBy)))
	for i, p := range procs {
		pids[i] = p.PID
		fmt.Fprintf(&b, "%d. %s - PID %d: CPU %.1f%%, Memory %.1f%%\n", i+1, p.Name, p.PID, p.CPU, p.Memory)
	}

	// Replaced wholesale so a later kill can recover a truncated id.
	d.sess.SetRecentPIDs(pids)

	return ok(strings.TrimRight(b.String(), "\n"))
}

func (d *Dispatcher) killProcess(ctx context.Context, params map[string]any) Result {
	pid, present, bad := intParam(params, "pid")
	if bad.Status != "" {
		return bad
	}
	if !present {
		return missing("pid")
	}

	rep, err := d.sys.Terminate(ctx, pid)
	if err == nil {
		return ok(killMessage(rep))
	}
	if !errors.Is(err, ErrNotFound) {
		return killFailure(pid, err)
	}
	return d.recoverPID(ctx, pid)
}

// recoverPID handles a not-found pid by prefix-matching it against the most
// recently listed pids. Spoken ids are often truncated, so "432" should
// find 4321 — but only when the match is unique.
func (d *Dispatcher) recoverPID(ctx context.Context, pid int) Result {
	notFound := Result{
		Status:  StatusNotFound,
		Message: fmt.Sprintf("Process with ID %d was not found on the system", pid),
	}

	recent := d.sess.RecentPIDs()
	if len(recent) == 0 {
		return notFound
	}

	// An exact member that the collaborator still rejects is simply gone;
	// prefix search would only dredge up false neighbors.
	for _, c := range recent {
		if c == pid {
			return notFound
		}
	}

	prefix := strconv.Itoa(pid)
	var matches []int
	for _, c := range recent {
		if strings.HasPrefix(strconv.Itoa(c), prefix) {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return notFound
	case 1:
		log.Info("Recovered partial pid", "heard", pid, "matched", matches[0])
		rep, err := d.sys.Terminate(ctx, matches[0])
		if err != nil {
			return killFailure(matches[0], err)
		}
		return ok(fmt.Sprintf("ID %d matched recently listed process %d. %s", pid, matches[0], killMessage(rep)))
	default:
		if len(matches) > maxAmbiguous {
			matches = matches[:maxAmbiguous]
		}
		parts := make([]string, len(matches))
		for i, m := range matches {
			parts[i] = strconv.Itoa(m)
		}
		return Result{
			Status:  StatusAmbiguous,
			Message: fmt.Sprintf("ID %d is ambiguous, candidates are: %s. Nothing was terminated", pid, strings.Join(parts, ", ")),
		}
	}
}

func (d *Dispatcher) killByName(ctx context.Context, params map[string]any) Result {
	name, present, bad := stringParam(params, "name")
	if bad.Status != "" {
		return bad
	}
	if !present || name == "" {
		return missing("name")
	}

	exclude, _, bad := stringSetParam(params, "exclude")
	if bad.Status != "" {
		return bad
	}

	reports, err := d.sys.TerminateByName(ctx, name, exclude)
	if err != nil {
		return collabFailure(err, "Could not terminate processes named "+name)
	}
	if len(reports) == 0 {
		return Result{
			Status:  StatusNotFound,
			Message: fmt.Sprintf("No processes named %s were found on the system", name),
		}
	}

	parts := make([]string, len(reports))
	for i, r := range reports {
		parts[i] = fmt.Sprintf("%s with PID %d", r.Name, r.PID)
	}
	return ok(fmt.Sprintf("Successfully terminated %d process(es): %s", len(reports), strings.Join(parts, ", ")))
}

func (d *Dispatcher) systemInfo(ctx context.Context) Result {
	st, err := d.sys.SystemStats(ctx)
	if err != nil {
		return collabFailure(err, "Could not read system stats")
	}
	msg := fmt.Sprintf(`System Information:
CPU Usage: %.1f%%
CPU Cores: %d
CPU Frequency: %.0f MHz
Memory Usage: %.1f%% (%.2f GB of %.2f GB)
Disk Usage: %.1f%% (%.2f GB of %.2f GB)
Active Processes: %d`,
		st.CPUPercent, st.CPUCount, st.CPUFreqMHz,
		st.MemPercent, st.MemUsedGB, st.MemTotalGB,
		st.DiskPercent, st.DiskUsedGB, st.DiskTotalGB,
		st.ProcessCount)
	return ok(msg)
}

func (d *Dispatcher) processInfo(ctx context.Context, params map[string]any) Result {
	pid, present, bad := intParam(params, "pid")
	if bad.Status != "" {
		return bad
	}
	if !present {
		return missing("pid")
	}

	det, err := d.sys.ProcessDetail(ctx, pid)
	if err != nil {
		return collabFailure(err, fmt.Sprintf("Process with ID %d", pid))
	}
	msg := fmt.Sprintf(`Process Information for PID %d:
Name: %s
Status: %s
CPU Usage: %.1f%%
Memory: %.2f MB
Threads: %d`,
		det.PID, det.Name, det.Status, det.CPU, det.MemoryMB, det.Threads)
	return ok(msg)
}

func (d *Dispatcher) listFiles(ctx context.Context, params map[string]any) Result {
	path := "."
	if p, present, bad := stringParam(params, "path"); bad.Status != "" {
		return bad
	} else if present && p != "" {
		path = p
	}
	path = expandUser(path)

	listing, err := d.sys.ListDirectory(ctx, path)
	if err != nil {
		return collabFailure(err, "Path "+path)
	}
	if listing.IsFile {
		return ok("This is a file: " + filepath.Base(listing.Path))
	}
	if len(listing.Entries) == 0 {
		return ok(fmt.Sprintf("The directory %s is empty", listing.Path))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Contents of %s:\n", listing.Path)
	for _, e := range listing.Entries {
		if e.Dir {
			fmt.Fprintf(&b, "[Folder] %s\n", e.Name)
		} else {
			fmt.Fprintf(&b, "[File] %s - %.1f KB\n", e.Name, e.SizeKB)
		}
	}
	if listing.Remainder > 0 {
		fmt.Fprintf(&b, "And %d more items", listing.Remainder)
	}
	return ok(strings.TrimRight(b.String(), "\n"))
}

func (d *Dispatcher) launchApp(ctx context.Context, params map[string]any) Result {
	name, present, bad := stringParam(params, "name")
	if bad.Status != "" {
		return bad
	}
	if !present || name == "" {
		return missing("name")
	}

	rep, err := d.sys.Launch(ctx, name)
	if err != nil {
		return collabFailure(err, "Application "+name)
	}

	msg := fmt.Sprintf("Launched %s (PID %d)", rep.Target, rep.ParentPID)
	if len(rep.Descendants) > 0 {
		parts := make([]string, len(rep.Descendants))
		for i, p := range rep.Descendants {
			parts[i] = strconv.Itoa(p)
		}
		msg += fmt.Sprintf(" with %d child process(es): %s", len(rep.Descendants), strings.Join(parts, ", "))
	}
	return ok(msg)
}

func killMessage(rep KillReport) string {
	if rep.Forced {
		return fmt.Sprintf("Process %s with ID %d was force killed after the termination timeout", rep.Name, rep.PID)
	}
	return fmt.Sprintf("Process %s with ID %d has been terminated successfully", rep.Name, rep.PID)
}

func killFailure(pid int, err error) Result {
	switch {
	case errors.Is(err, ErrAccessDenied):
		return Result{
			Status:  StatusAccessDenied,
			Message: fmt.Sprintf("Access denied. Cannot terminate process %d. You may need elevated rights", pid),
		}
	case errors.Is(err, ErrTimeout):
		return Result{
			Status:  StatusTimeout,
			Message: fmt.Sprintf("Timed out while terminating process %d", pid),
		}
	case errors.Is(err, ErrNotFound):
		return Result{
			Status:  StatusNotFound,
			Message: fmt.Sprintf("Process with ID %d was not found on the system", pid),
		}
	default:
		return failed(fmt.Sprintf("Failed to terminate process %d: %v", pid, err))
	}
}

// collabFailure maps a collaborator error onto a Result. subject leads the
// message, e.g. "Path /tmp/x was not found".
func collabFailure(err error, subject string) Result {
	switch {
	case errors.Is(err, ErrNotFound):
		return Result{Status: StatusNotFound, Message: subject + " was not found"}
	case errors.Is(err, ErrAccessDenied):
		return Result{Status: StatusAccessDenied, Message: subject + ": access denied"}
	case errors.Is(err, ErrTimeout):
		return Result{Status: StatusTimeout, Message: subject + ": timed out"}
	default:
		return failed(subject + ": " + err.Error())
	}
}

func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}
