package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophpass/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	unlocked bool
	touches  int
	calls    []string
	err      error
}

func (f *fakeExec) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeExec) isUnlocked() bool { return f.unlocked }
func (f *fakeExec) touch() { f.touches++ }
func (f *fakeExec) Login(ctx context.Context) error {
	f.unlocked = true
	return f.record("login")
}
func (f *fakeExec) Add(ctx context.Context) error { return f.record("add") }
func (f *fakeExec) Edit(ctx context.Context, id int64) error { return f.record("edit %d", id) }
func (f *fakeExec) Delete(ctx context.Context, id int64) error { return f.record("delete %d", id) }
func (f *fakeExec) List(ctx context.Context) error { return f.record("list") }
func (f *fakeExec) Find(ctx context.Context, d string) error { return f.record("find %s", d) }
func (f *fakeExec) Show(ctx context.Context, id int64) error { return f.record("show %d", id) }
func (f *fakeExec) Copy(ctx context.Context, id int64) error { return f.record("copy %d", id) }
func (f *fakeExec) ClearClipboard() error { return f.record("clear") }
func (f *fakeExec) Lock() { f.unlocked = false; _ = f.record("lock") }
func (f *fakeExec) Reset(ctx context.Context) error { return f.record("reset") }

// capturePrint swaps printlnFn for the duration of the test.
func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func run(exec *fakeExec, input ...string) {
	sc := bufio.NewScanner(strings.NewReader(strings.Join(input, "\n")))
	runREPL(context.Background(), exec, func() string { return "status" }, sc)
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	capturePrint(t)
	exec := &fakeExec{}

	run(exec,
		"login",
		"add",
		"edit 3",
		"delete 4",
		"list",
		"l",
		"find example.com",
		"show 5",
		"copy 6",
		"cp 7",
		"clear",
		"reset",
		"lock",
		"exit",
		"list",
	)

	assert.Equal(t, []string{
		"login", "add", "edit 3", "delete 4", "list", "list", "find example.com",
		"show 5", "copy 6", "copy 7", "clear", "reset", "lock",
	}, exec.calls)
}

func TestRunREPL_EveryLineTouchesSession(t *testing.T) {
	capturePrint(t)
	exec := &fakeExec{}

	run(exec, "help", "", "   ", "bogus", "list", "quit")

	assert.Equal(t, 4, exec.touches, "blank lines are not activity")
}

func TestRunREPL_UsageErrors(t *testing.T) {
	lines := capturePrint(t)
	exec := &fakeExec{unlocked: true}

	run(exec, "show", "edit a b", "copy x", "find", "delete -1", "quit")

	assert.Empty(t, exec.calls)
	out := strings.Join(*lines, "\n")
	assert.Contains(t, out, "Usage: show <id>")
	assert.Contains(t, out, "Usage: edit <id>")
	assert.Contains(t, out, `invalid id "x"`)
	assert.Contains(t, out, "Usage: find <domain>")
	assert.Contains(t, out, `invalid id "-1"`)
}

func TestRunREPL_HelpDependsOnState(t *testing.T) {
	lines := capturePrint(t)

	run(&fakeExec{}, "help")
	run(&fakeExec{unlocked: true}, "help")

	assert.Contains(t, *lines, helpLocked)
	assert.Contains(t, *lines, helpUnlocked)
}

func TestRunREPL_ReportsErrors(t *testing.T) {
	lines := capturePrint(t)
	exec := &fakeExec{err: fmt.Errorf("list: %w", common.ErrLockedSessionAccess)}

	run(exec, "list", "unknowncmd", "exit")

	assert.Contains(t, *lines, "Session is locked, type 'login' first.")
	assert.Contains(t, *lines, "Unknown command: unknowncmd")
	assert.Equal(t, "Bye!", (*lines)[len(*lines)-1])
}

func TestRunREPL_PromptShowsStatus(t *testing.T) {
	lines := capturePrint(t)
	run(&fakeExec{})
	require.NotEmpty(t, *lines)
	assert.Equal(t, "gophpass (status)> ", (*lines)[0])
}

func TestDescribe(t *testing.T) {
	tests := map[error]string{
		common.ErrSessionBusy:     "Already logged in, type 'lock' to switch user.",
		common.ErrInsecureContext: "Refusing to derive secrets: not running on an interactive terminal.",
		common.ErrNotFound:        "No such site.",
	}
	for err, want := range tests {
		assert.Equal(t, want, describe(fmt.Errorf("wrapped: %w", err)))
	}
	assert.Contains(t, describe(common.ErrStoreUnavailable), "Site store unavailable")
	assert.Contains(t, describe(common.ErrInvalidRecord), "Invalid site")
	assert.Equal(t, "Error: boom", describe(fmt.Errorf("boom")))
}
