package command

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sysvox/internal/directive"
	"sysvox/internal/session"
)

// fakeSystem records calls and serves canned data so dispatch behavior can
// be checked without touching the real process table.
type fakeSystem struct {
	calls []string

	procs     []ProcessSample
	missing   map[int]bool
	denied    map[int]bool
	killed    []int
	byName    []KillReport
	listing   DirListing
	listError error
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{missing: map[int]bool{}, denied: map[int]bool{}}
}

func (f *fakeSystem) TopProcesses(_ context.Context, count int, sortBy SortKey) ([]ProcessSample, error) {
	f.calls = append(f.calls, fmt.Sprintf("top(%d,%s)", count, sortBy))
	if count > len(f.procs) {
		count = len(f.procs)
	}
	return f.procs[:count], nil
}

func (f *fakeSystem) Terminate(_ context.Context, pid int) (KillReport, error) {
	f.calls = append(f.calls, fmt.Sprintf("kill(%d)", pid))
	if f.missing[pid] {
		return KillReport{}, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	if f.denied[pid] {
		return KillReport{}, fmt.Errorf("pid %d: %w", pid, ErrAccessDenied)
	}
	f.killed = append(f.killed, pid)
	return KillReport{PID: pid, Name: "proc"}, nil
}

func (f *fakeSystem) TerminateByName(_ context.Context, name string, exclude []string) ([]KillReport, error) {
	f.calls = append(f.calls, fmt.Sprintf("killByName(%s,%v)", name, exclude))
	return f.byName, nil
}

func (f *fakeSystem) SystemStats(context.Context) (SystemStats, error) {
	f.calls = append(f.calls, "stats")
	return SystemStats{CPUPercent: 12.5, CPUCount: 8, MemPercent: 40, ProcessCount: 200}, nil
}

func (f *fakeSystem) ProcessDetail(_ context.Context, pid int) (ProcessDetail, error) {
	f.calls = append(f.calls, fmt.Sprintf("detail(%d)", pid))
	if f.missing[pid] {
		return ProcessDetail{}, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	return ProcessDetail{PID: pid, Name: "proc", Status: "sleeping", Threads: 4}, nil
}

func (f *fakeSystem) ListDirectory(_ context.Context, path string) (DirListing, error) {
	f.calls = append(f.calls, "list("+path+")")
	if f.listError != nil {
		return DirListing{}, f.listError
	}
	l := f.listing
	if l.Path == "" {
		l.Path = path
	}
	return l, nil
}

func (f *fakeSystem) Launch(_ context.Context, name string) (LaunchReport, error) {
	f.calls = append(f.calls, "launch("+name+")")
	return LaunchReport{Target: name, ParentPID: 100, Descendants: []int{101, 102}}, nil
}

func newDispatcher(sys *fakeSystem) (*Dispatcher, *session.Session) {
	sess := session.New(0)
	return NewDispatcher(sys, sess), sess
}

func dispatch(t *testing.T, d *Dispatcher, cmd string, params map[string]any) Result {
	t.Helper()
	return d.Dispatch(context.Background(), directive.Directive{Command: cmd, Params: params})
}

func TestTopProcessesClampAndDefaults(t *testing.T) {
	sys := newFakeSystem()
	for i := 0; i < 30; i++ {
		sys.procs = append(sys.procs, ProcessSample{PID: 1000 + i, Name: fmt.Sprintf("p%d", i)})
	}
	d, _ := newDispatcher(sys)

	t.Run("ZeroClampsToOne", func(t *testing.T) {
		res := dispatch(t, d, CmdTopProcesses, map[string]any{"count": float64(0)})
		require.True(t, res.OK())
		assert.Contains(t, sys.calls, "top(1,cpu)")
	})

	t.Run("FiftyClampsToTwenty", func(t *testing.T) {
		res := dispatch(t, d, CmdTopProcesses, map[string]any{"count": float64(50)})
		require.True(t, res.OK())
		assert.Contains(t, sys.calls, "top(20,cpu)")
	})

	t.Run("OmittedDefaults", func(t *testing.T) {
		res := dispatch(t, d, CmdTopProcesses, map[string]any{})
		require.True(t, res.OK())
		assert.Contains(t, sys.calls, "top(5,cpu)")
	})

	t.Run("MemorySort", func(t *testing.T) {
		res := dispatch(t, d, CmdTopProcesses, map[string]any{"sort_by": "memory"})
		require.True(t, res.OK())
		assert.Contains(t, sys.calls, "top(5,memory)")
	})

	t.Run("BadSortKey", func(t *testing.T) {
		res := dispatch(t, d, CmdTopProcesses, map[string]any{"sort_by": "disk"})
		assert.Equal(t, StatusInvalidParam, res.Status)
	})

	t.Run("FractionalCount", func(t *testing.T) {
		res := dispatch(t, d, CmdTopProcesses, map[string]any{"count": 2.5})
		assert.Equal(t, StatusInvalidParam, res.Status)
	})
}

func TestTopProcessesHeaderMatchesRows(t *testing.T) {
	sys := newFakeSystem()
	sys.procs = []ProcessSample{{PID: 1, Name: "a"}, {PID: 2, Name: "b"}}
	d, _ := newDispatcher(sys)

	// Fewer processes exist than were asked for; the header reports what
	// the listing actually holds.
	res := dispatch(t, d, CmdTopProcesses, map[string]any{"count": float64(10)})
	require.True(t, res.OK())
	assert.Contains(t, res.Message, "Top 2 processes")
}

func TestTopProcessesReplacesRecentPIDs(t *testing.T) {
	sys := newFakeSystem()
	sys.procs = []ProcessSample{{PID: 4321, Name: "a"}, {PID: 9999, Name: "b"}}
	d, sess := newDispatcher(sys)
	sess.SetRecentPIDs([]int{1, 2, 3})

	res := dispatch(t, d, CmdTopProcesses, map[string]any{"count": float64(2)})
	require.True(t, res.OK())
	assert.Equal(t, []int{4321, 9999}, sess.RecentPIDs())
}

func TestKillProcessRequiresPID(t *testing.T) {
	sys := newFakeSystem()
	d, _ := newDispatcher(sys)

	res := dispatch(t, d, CmdKillProcess, map[string]any{})
	assert.Equal(t, StatusMissingParam, res.Status)
	assert.Contains(t, res.Message, "pid")
	assert.Empty(t, sys.calls, "no collaborator call on missing parameter")
}

func TestKillProcessRejectsStringPID(t *testing.T) {
	sys := newFakeSystem()
	d, _ := newDispatcher(sys)

	res := dispatch(t, d, CmdKillProcess, map[string]any{"pid": "4321"})
	assert.Equal(t, StatusInvalidParam, res.Status)
	assert.Empty(t, sys.calls)
}

func TestKillProcessFuzzyRecovery(t *testing.T) {
	t.Run("ExactMemberGoneMeansNotFound", func(t *testing.T) {
		sys := newFakeSystem()
		sys.missing[4321] = true
		d, sess := newDispatcher(sys)
		sess.SetRecentPIDs([]int{4321, 4322, 9999})

		res := dispatch(t, d, CmdKillProcess, map[string]any{"pid": float64(4321)})
		assert.Equal(t, StatusNotFound, res.Status)
		assert.Empty(t, sys.killed)
	})

	t.Run("SingleMatchSubstitutes", func(t *testing.T) {
		sys := newFakeSystem()
		sys.missing[432] = true
		d, sess := newDispatcher(sys)
		sess.SetRecentPIDs([]int{4321, 9999})

		res := dispatch(t, d, CmdKillProcess, map[string]any{"pid": float64(432)})
		require.True(t, res.OK())
		assert.Equal(t, []int{4321}, sys.killed)
		assert.Contains(t, res.Message, "4321")
		assert.Contains(t, res.Message, "432")
	})

	t.Run("TwoMatchesAmbiguous", func(t *testing.T) {
		sys := newFakeSystem()
		sys.missing[432] = true
		d, sess := newDispatcher(sys)
		sess.SetRecentPIDs([]int{4321, 4322})

		res := dispatch(t, d, CmdKillProcess, map[string]any{"pid": float64(432)})
		assert.Equal(t, StatusAmbiguous, res.Status)
		assert.Contains(t, res.Message, "4321")
		assert.Contains(t, res.Message, "4322")
		assert.Empty(t, sys.killed, "ambiguity must not terminate anything")
	})

	t.Run("NoMatchKeepsNotFound", func(t *testing.T) {
		sys := newFakeSystem()
		sys.missing[77] = true
		d, sess := newDispatcher(sys)
		sess.SetRecentPIDs([]int{4321, 9999})

		res := dispatch(t, d, CmdKillProcess, map[string]any{"pid": float64(77)})
		assert.Equal(t, StatusNotFound, res.Status)
	})

	t.Run("EmptyRecentSet", func(t *testing.T) {
		sys := newFakeSystem()
		sys.missing[432] = true
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdKillProcess, map[string]any{"pid": float64(432)})
		assert.Equal(t, StatusNotFound, res.Status)
	})

	t.Run("AmbiguousListCappedAtFive", func(t *testing.T) {
		sys := newFakeSystem()
		sys.missing[4] = true
		d, sess := newDispatcher(sys)
		sess.SetRecentPIDs([]int{41, 42, 43, 44, 45, 46, 47})

		res := dispatch(t, d, CmdKillProcess, map[string]any{"pid": float64(4)})
		assert.Equal(t, StatusAmbiguous, res.Status)
		assert.NotContains(t, res.Message, "46")
		assert.NotContains(t, res.Message, "47")
	})
}

func TestKillProcessAccessDenied(t *testing.T) {
	sys := newFakeSystem()
	sys.denied[1] = true
	d, _ := newDispatcher(sys)

	res := dispatch(t, d, CmdKillProcess, map[string]any{"pid": float64(1)})
	assert.Equal(t, StatusAccessDenied, res.Status)
}

func TestKillByName(t *testing.T) {
	t.Run("PassesExclusions", func(t *testing.T) {
		sys := newFakeSystem()
		sys.byName = []KillReport{{PID: 10, Name: "chrome"}}
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdKillByName, map[string]any{
			"name":    "chrome",
			"exclude": []any{"helper"},
		})
		require.True(t, res.OK())
		assert.Contains(t, sys.calls, "killByName(chrome,[helper])")
	})

	t.Run("NoMatches", func(t *testing.T) {
		sys := newFakeSystem()
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdKillByName, map[string]any{"name": "ghost"})
		assert.Equal(t, StatusNotFound, res.Status)
	})

	t.Run("MissingName", func(t *testing.T) {
		sys := newFakeSystem()
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdKillByName, map[string]any{})
		assert.Equal(t, StatusMissingParam, res.Status)
		assert.Empty(t, sys.calls)
	})

	t.Run("SingleStringExclude", func(t *testing.T) {
		sys := newFakeSystem()
		sys.byName = []KillReport{{PID: 10, Name: "chrome"}}
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdKillByName, map[string]any{
			"name":    "chrome",
			"exclude": "helper",
		})
		require.True(t, res.OK())
		assert.Contains(t, sys.calls, "killByName(chrome,[helper])")
	})
}

func TestUnknownCommand(t *testing.T) {
	sys := newFakeSystem()
	d, _ := newDispatcher(sys)

	res := dispatch(t, d, "reboot_system", map[string]any{})
	assert.Equal(t, StatusUnknownCommand, res.Status)
	assert.Contains(t, res.Message, "reboot_system")
	assert.Empty(t, sys.calls, "unknown command must not reach the collaborator")
}

func TestListFiles(t *testing.T) {
	t.Run("DefaultsToCurrentDir", func(t *testing.T) {
		sys := newFakeSystem()
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdListFiles, map[string]any{})
		require.True(t, res.OK())
		assert.Contains(t, sys.calls, "list(.)")
	})

	t.Run("FormatsEntriesAndRemainder", func(t *testing.T) {
		sys := newFakeSystem()
		sys.listing = DirListing{
			Path: "/srv",
			Entries: []DirEntry{
				{Name: "logs", Dir: true},
				{Name: "app.conf", SizeKB: 1.5},
			},
			Remainder: 3,
		}
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdListFiles, map[string]any{"path": "/srv"})
		require.True(t, res.OK())
		assert.Contains(t, res.Message, "[Folder] logs")
		assert.Contains(t, res.Message, "[File] app.conf - 1.5 KB")
		assert.Contains(t, res.Message, "And 3 more items")
	})

	t.Run("MissingPathBecomesNotFound", func(t *testing.T) {
		sys := newFakeSystem()
		sys.listError = fmt.Errorf("stat: %w", ErrNotFound)
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdListFiles, map[string]any{"path": "/nope"})
		assert.Equal(t, StatusNotFound, res.Status)
	})

	t.Run("TildePrefixExpandsToHome", func(t *testing.T) {
		t.Setenv("HOME", "/home/eva")
		sys := newFakeSystem()
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdListFiles, map[string]any{"path": "~/Downloads"})
		require.True(t, res.OK())
		assert.Contains(t, sys.calls, "list(/home/eva/Downloads)")
	})

	t.Run("BareTildeIsHome", func(t *testing.T) {
		t.Setenv("HOME", "/home/eva")
		sys := newFakeSystem()
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdListFiles, map[string]any{"path": "~"})
		require.True(t, res.OK())
		assert.Contains(t, sys.calls, "list(/home/eva)")
	})

	t.Run("PlainFile", func(t *testing.T) {
		sys := newFakeSystem()
		sys.listing = DirListing{Path: "/etc/hosts", IsFile: true}
		d, _ := newDispatcher(sys)

		res := dispatch(t, d, CmdListFiles, map[string]any{"path": "/etc/hosts"})
		require.True(t, res.OK())
		assert.Contains(t, res.Message, "This is a file: hosts")
	})
}

func TestLaunchApp(t *testing.T) {
	sys := newFakeSystem()
	d, _ := newDispatcher(sys)

	res := dispatch(t, d, CmdLaunchApp, map[string]any{"name": "browser"})
	require.True(t, res.OK())
	assert.Contains(t, res.Message, "PID 100")
	assert.Contains(t, res.Message, "101")

	res = dispatch(t, d, CmdLaunchApp, map[string]any{})
	assert.Equal(t, StatusMissingParam, res.Status)
}

func TestSystemInfo(t *testing.T) {
	sys := newFakeSystem()
	d, _ := newDispatcher(sys)

	res := dispatch(t, d, CmdSystemInfo, nil)
	require.True(t, res.OK())
	assert.Contains(t, res.Message, "CPU Usage: 12.5%")
	assert.Contains(t, res.Message, "Active Processes: 200")
}

func TestProcessInfo(t *testing.T) {
	sys := newFakeSystem()
	d, _ := newDispatcher(sys)

	res := dispatch(t, d, CmdProcessInfo, map[string]any{"pid": float64(55)})
	require.True(t, res.OK())
	assert.Contains(t, res.Message, "PID 55")
	assert.Contains(t, res.Message, "Threads: 4")
}
