// Package system implements the process/system collaborator on top of
// gopsutil. It is the only package that touches the process table; every
// failure is reported through the command package's sentinel errors so the
// dispatcher can classify it.
package system

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"sysvox/internal/command"
)

const (
	// How long a process gets to exit gracefully before escalation.
	terminateGrace = 3 * time.Second
	terminatePoll  = 100 * time.Millisecond

	dirListingCap = 15

	gb = 1024 * 1024 * 1024
)

// Inspector satisfies command.Collaborator against the live system.
type Inspector struct {
	diskRoot string
}

func NewInspector() *Inspector {
	return &Inspector{diskRoot: "/"}
}

func (in *Inspector) TopProcesses(ctx context.Context, count int, sortBy command.SortKey) ([]command.ProcessSample, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("iterate processes: %w", err)
	}

	samples := make([]command.ProcessSample, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Raced with process exit or access denied; skip like psutil does.
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		memPct, _ := p.MemoryPercentWithContext(ctx)
		samples = append(samples, command.ProcessSample{
			PID:    int(p.Pid),
			Name:   name,
			CPU:    cpuPct,
			Memory: float64(memPct),
		})
	}

	sort.SliceStable(samples, func(i, j int) bool {
		if sortBy == command.SortMemory {
			return samples[i].Memory > samples[j].Memory
		}
		return samples[i].CPU > samples[j].CPU
	})

	if count < len(samples) {
		samples = samples[:count]
	}
	return samples, nil
}

func (in *Inspector) Terminate(ctx context.Context, pid int) (command.KillReport, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return command.KillReport{}, fmt.Errorf("pid %d: %w", pid, command.ErrNotFound)
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return command.KillReport{}, classify(pid, err)
	}

	if err := p.TerminateWithContext(ctx); err != nil {
		return command.KillReport{}, classify(pid, err)
	}

	if waitGone(ctx, p) {
		return command.KillReport{PID: pid, Name: name}, nil
	}

	// Grace period expired, escalate.
	if err := p.KillWithContext(ctx); err != nil {
		return command.KillReport{}, fmt.Errorf("pid %d still running after SIGKILL: %w", pid, command.ErrTimeout)
	}
	return command.KillReport{PID: pid, Name: name, Forced: true}, nil
}

// waitGone polls until the process exits or the grace period runs out.
func waitGone(ctx context.Context, p *process.Process) bool {
	deadline := time.Now().Add(terminateGrace)
	for time.Now().Before(deadline) {
		running, err := p.IsRunningWithContext(ctx)
		if err != nil || !running {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(terminatePoll):
		}
	}
	return false
}

func (in *Inspector) TerminateByName(ctx context.Context, name string, exclude []string) ([]command.KillReport, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("iterate processes: %w", err)
	}

	var reports []command.KillReport
	for _, p := range procs {
		pname, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if !MatchName(pname, name, exclude) {
			continue
		}
		if err := p.TerminateWithContext(ctx); err != nil {
			// Skip what we cannot touch, keep going; matches the
			// original's per-process suppression.
			continue
		}
		reports = append(reports, command.KillReport{PID: int(p.Pid), Name: pname})
	}
	return reports, nil
}

func (in *Inspector) SystemStats(ctx context.Context) (command.SystemStats, error) {
	cpuPct, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil || len(cpuPct) == 0 {
		return command.SystemStats{}, fmt.Errorf("cpu percent: %w", err)
	}
	cores, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return command.SystemStats{}, fmt.Errorf("cpu counts: %w", err)
	}
	var freq float64
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		freq = infos[0].Mhz
	}
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return command.SystemStats{}, fmt.Errorf("virtual memory: %w", err)
	}
	du, err := disk.UsageWithContext(ctx, in.diskRoot)
	if err != nil {
		return command.SystemStats{}, fmt.Errorf("disk usage: %w", err)
	}
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return command.SystemStats{}, fmt.Errorf("pids: %w", err)
	}

	return command.SystemStats{
		CPUPercent:   cpuPct[0],
		CPUCount:     cores,
		CPUFreqMHz:   freq,
		MemPercent:   vm.UsedPercent,
		MemUsedGB:    float64(vm.Used) / gb,
		MemTotalGB:   float64(vm.Total) / gb,
		DiskPercent:  du.UsedPercent,
		DiskUsedGB:   float64(du.Used) / gb,
		DiskTotalGB:  float64(du.Total) / gb,
		ProcessCount: len(pids),
	}, nil
}

func (in *Inspector) ProcessDetail(ctx context.Context, pid int) (command.ProcessDetail, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return command.ProcessDetail{}, fmt.Errorf("pid %d: %w", pid, command.ErrNotFound)
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return command.ProcessDetail{}, classify(pid, err)
	}

	status := "unknown"
	if st, err := p.StatusWithContext(ctx); err == nil && len(st) > 0 {
		status = st[0]
	}
	cpuPct, _ := p.CPUPercentWithContext(ctx)
	threads, _ := p.NumThreadsWithContext(ctx)

	var memMB float64
	if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
		memMB = float64(mi.RSS) / (1024 * 1024)
	}

	return command.ProcessDetail{
		PID:      pid,
		Name:     name,
		Status:   status,
		CPU:      cpuPct,
		MemoryMB: memMB,
		Threads:  int(threads),
	}, nil
}

func (in *Inspector) ListDirectory(_ context.Context, path string) (command.DirListing, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return command.DirListing{}, classifyPath(path, err)
	}
	if !fi.IsDir() {
		return command.DirListing{Path: path, IsFile: true}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return command.DirListing{}, classifyPath(path, err)
	}

	listing := command.DirListing{Path: path}
	for i, e := range entries {
		if i == dirListingCap {
			listing.Remainder = len(entries) - dirListingCap
			break
		}
		de := command.DirEntry{Name: e.Name(), Dir: e.IsDir()}
		if !e.IsDir() {
			if info, err := e.Info(); err == nil {
				de.SizeKB = float64(info.Size()) / 1024
			}
		}
		listing.Entries = append(listing.Entries, de)
	}
	return listing, nil
}

// MatchName reports whether a process name matches the requested substring
// and none of the exclusions. All comparisons are case-insensitive.
func MatchName(procName, want string, exclude []string) bool {
	if !containsFold(procName, want) {
		return false
	}
	for _, ex := range exclude {
		if containsFold(procName, ex) {
			return false
		}
	}
	return true
}

func classify(pid int, err error) error {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning), errors.Is(err, syscall.ESRCH):
		return fmt.Errorf("pid %d: %w", pid, command.ErrNotFound)
	case errors.Is(err, syscall.EPERM), errors.Is(err, syscall.EACCES), errors.Is(err, os.ErrPermission):
		return fmt.Errorf("pid %d: %w", pid, command.ErrAccessDenied)
	default:
		return fmt.Errorf("pid %d: %w", pid, err)
	}
}

func classifyPath(path string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%s: %w", path, command.ErrNotFound)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%s: %w", path, command.ErrAccessDenied)
	default:
		return fmt.Errorf("%s: %w", path, err)
	}
}
