package command

import (
	"context"
	"errors"
)

// Sentinel failures a collaborator is allowed to signal. The dispatcher is
// the only layer that turns these into Result statuses; collaborators wrap
// them with context via fmt.Errorf and %w.
var (
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrTimeout      = errors.New("timed out")
)

// SortKey selects the metric top_processes orders by.
type SortKey string

const (
	SortCPU    SortKey = "cpu"
	SortMemory SortKey = "memory"
)

// ProcessSample is one row of a process listing.
type ProcessSample struct {
	PID    int
	Name   string
	CPU    float64
	Memory float64
}

// KillReport describes one terminated process.
type KillReport struct {
	PID    int
	Name   string
	Forced bool
}

// SystemStats carries the aggregate resource counters.
type SystemStats struct {
	CPUPercent   float64
	CPUCount     int
	CPUFreqMHz   float64
	MemPercent   float64
	MemUsedGB    float64
	MemTotalGB   float64
	DiskPercent  float64
	DiskUsedGB   float64
	DiskTotalGB  float64
	ProcessCount int
}

// ProcessDetail is the per-process report for process_info.
type ProcessDetail struct {
	PID      int
	Name     string
	Status   string
	CPU      float64
	MemoryMB float64
	Threads  int
}

// DirEntry is one listed directory entry.
type DirEntry struct {
	Name   string
	Dir    bool
	SizeKB float64
}

// DirListing is a capped directory listing. When the requested path is a
// regular file, IsFile is set and Entries is empty. Remainder counts the
// entries beyond the cap.
type DirListing struct {
	Path      string
	IsFile    bool
	Entries   []DirEntry
	Remainder int
}

// LaunchReport describes a freshly launched application: the resolved
// target, the parent PID and any descendant PIDs that appeared after the
// settle delay.
type LaunchReport struct {
	Target      string
	ParentPID   int
	Descendants []int
}

// Collaborator is the process/system capability surface the dispatcher
// routes to. Implementations report failures through the sentinel errors
// above and never panic.
type Collaborator interface {
	TopProcesses(ctx context.Context, count int, sortBy SortKey) ([]ProcessSample, error)
	Terminate(ctx context.Context, pid int) (KillReport, error)
	TerminateByName(ctx context.Context, name string, exclude []string) ([]KillReport, error)
	SystemStats(ctx context.Context) (SystemStats, error)
	ProcessDetail(ctx context.Context, pid int) (ProcessDetail, error)
	ListDirectory(ctx context.Context, path string) (DirListing, error)
	Launch(ctx context.Context, name string) (LaunchReport, error)
}
