package netsuke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/flosch/pongo2/v4"
	"github.com/google/shlex"
)

// commandTimeout bounds every shell()/grep() invocation (spec.md §4.5.3).
const commandTimeout = 5 * time.Second

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// globalShell implements `shell(stdin, command, capture=true)`: runs
// command through the platform shell, feeding it stdin (the piped template
// value, per spec.md §4.5.3's "reads the piped template value as stdin"),
// and returns its stdout, either fully captured in memory (bounded by
// Budgets.CaptureBytes) or spilled to a tempfile under
// <workspace>/.netsuke/tmp and returned as a path (bounded by
// Budgets.StreamBytes). Stdin is written on its own worker goroutine so a
// large producer can't block waiting on a full stdout pipe; stdout and
// stderr are likewise drained on separate goroutines, all joined before
// this function returns (spec.md §4.5.3, §5 "Concurrency & resource
// model").
func (e *Env) globalShell(stdin, command string, capture bool) (string, error) {
	e.markImpure()
	if strings.TrimSpace(command) == "" {
		return "", &StdlibError{Kind: StdlibSubprocessSpawn, Helper: "shell", Operation: "validate",
			Err: fmt.Errorf("command must not be empty")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	name, args := platformShell(command)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = e.workspaceRoot

	if capture {
		return e.runCaptured(ctx, cmd, "shell", stdin)
	}
	return e.runStreamed(ctx, cmd, "shell", stdin)
}

// globalGrep implements `grep(stdin, pattern, path)`: delegates to the
// platform's grep via shlex-quoted arguments so pattern metacharacters
// aren't reinterpreted by the shell. When path is empty, stdin (the piped
// template value) is searched instead of a file.
func (e *Env) globalGrep(stdin, pattern, path string) (string, error) {
	e.markImpure()
	argv := fmt.Sprintf("grep -n %s", shellQuote(pattern))
	if path != "" {
		argv += " " + shellQuote(path)
	}
	parts, err := shlex.Split(argv)
	if err != nil {
		return "", &StdlibError{Kind: StdlibSubprocessSpawn, Helper: "grep", Operation: "build argv", Err: err}
	}
	if len(parts) == 0 {
		return "", &StdlibError{Kind: StdlibSubprocessSpawn, Helper: "grep", Operation: "build argv",
			Err: fmt.Errorf("empty command")}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = e.workspaceRoot
	return e.runCaptured(ctx, cmd, "grep", stdin)
}

// writeStdin feeds stdin to cmd on its own goroutine, returning a function
// that joins that goroutine and reports its outcome. A BrokenPipe error is
// tolerated here unconditionally; the caller is responsible for surfacing
// it only if the command's own exit status was unsuccessful, per spec.md
// §4.5.3 ("BrokenPipe with a successful exit is tolerated").
func writeStdin(cmd *exec.Cmd, stdin string) (join func() error) {
	pw, err := cmd.StdinPipe()
	if err != nil {
		return func() error { return err }
	}
	done := make(chan error, 1)
	go func() {
		_, err := io.WriteString(pw, stdin)
		closeErr := pw.Close()
		if err == nil {
			err = closeErr
		}
		done <- err
	}()
	return func() error {
		err := <-done
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe) {
			return nil
		}
		return err
	}
}

// shellQuote wraps s in single quotes for POSIX shells, escaping any
// embedded single quote using the standard '\'' trick.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// platformShell returns the argv prefix used to hand a raw command string
// to the platform's shell (spec.md §4.5.3).
func platformShell(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", command}
	}
	return "sh", []string{"-c", command}
}

// runCaptured executes cmd with stdout/stderr drained concurrently into
// bounded in-memory buffers, returning stdout as a string.
func (e *Env) runCaptured(ctx context.Context, cmd *exec.Cmd, helper, stdin string) (string, error) {
	stdout, stderr, err := e.runDrained(ctx, cmd, helper, e.budgets.CaptureBytes, stdin)
	if err != nil {
		return "", err
	}
	_ = stderr
	return stdout.String(), nil
}

// runStreamed executes cmd with stdout spilled to a tempfile under
// <workspace>/.netsuke/tmp, returning the tempfile's path.
func (e *Env) runStreamed(ctx context.Context, cmd *exec.Cmd, helper, stdin string) (string, error) {
	tmpDir := filepath.Join(e.workspaceRoot, ".netsuke", "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", &StdlibError{Kind: StdlibIO, Helper: helper, Operation: "mkdir", Path: tmpDir, Err: err}
	}
	prefix := nonAlnum.ReplaceAllString(cmd.Path, "_")
	f, err := os.CreateTemp(tmpDir, prefix+"-*.out")
	if err != nil {
		return "", &StdlibError{Kind: StdlibIO, Helper: helper, Operation: "create tempfile", Path: tmpDir, Err: err}
	}
	defer f.Close()

	limited := &limitedWriter{w: f, limit: e.budgets.StreamBytes}
	cmd.Stdout = limited

	stderrBuf := &bytes.Buffer{}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return "", &StdlibError{Kind: StdlibSubprocessSpawn, Helper: helper, Operation: "pipe stderr", Err: err}
	}
	joinStdin := writeStdin(cmd, stdin)

	if err := cmd.Start(); err != nil {
		return "", &StdlibError{Kind: StdlibSubprocessSpawn, Helper: helper, Operation: "start", Err: err}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		io.Copy(stderrBuf, stderrPipe)
	}()
	wg.Wait()
	stdinErr := joinStdin()

	err = cmd.Wait()
	if limited.exceeded {
		return "", &StdlibError{Kind: StdlibOutputLimit, Helper: helper,
			Err: fmt.Errorf("output exceeded %d bytes", e.budgets.StreamBytes)}
	}
	if ctx.Err() == context.DeadlineExceeded {
		return "", &StdlibError{Kind: StdlibSubprocessTimeout, Helper: helper, Operation: "run",
			Err: fmt.Errorf("exceeded %s", commandTimeout)}
	}
	if err != nil {
		return "", &StdlibError{Kind: StdlibSubprocessSpawn, Helper: helper, Operation: "run",
			Err: fmt.Errorf("%w: %s", err, redactArg(stderrBuf.String()))}
	}
	if stdinErr != nil {
		return "", &StdlibError{Kind: StdlibSubprocessSpawn, Helper: helper, Operation: "write stdin", Err: stdinErr}
	}
	return f.Name(), nil
}

// runDrained is the shared worker-thread plumbing for runCaptured: stdin is
// written, and stdout and stderr pipes are drained, each on its own
// goroutine, joined before Wait returns, matching the teacher's subprocess
// worker-thread model in subprocess_posix.go.
func (e *Env) runDrained(ctx context.Context, cmd *exec.Cmd, helper string, limit int64, stdin string) (*bytes.Buffer, *bytes.Buffer, error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, &StdlibError{Kind: StdlibSubprocessSpawn, Helper: helper, Operation: "pipe stdout", Err: err}
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, &StdlibError{Kind: StdlibSubprocessSpawn, Helper: helper, Operation: "pipe stderr", Err: err}
	}
	joinStdin := writeStdin(cmd, stdin)

	if err := cmd.Start(); err != nil {
		return nil, nil, &StdlibError{Kind: StdlibSubprocessSpawn, Helper: helper, Operation: "start", Err: err}
	}

	stdoutBuf := &limitedWriter{w: &bytes.Buffer{}, limit: limit}
	stderrBuf := &bytes.Buffer{}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); io.Copy(stdoutBuf, stdoutPipe) }()
	go func() { defer wg.Done(); io.Copy(stderrBuf, stderrPipe) }()
	wg.Wait()
	stdinErr := joinStdin()

	err = cmd.Wait()
	out := stdoutBuf.w.(*bytes.Buffer)
	if stdoutBuf.exceeded {
		return out, stderrBuf, &StdlibError{Kind: StdlibOutputLimit, Helper: helper,
			Err: fmt.Errorf("output exceeded %d bytes", limit)}
	}
	if ctx.Err() == context.DeadlineExceeded {
		return out, stderrBuf, &StdlibError{Kind: StdlibSubprocessTimeout, Helper: helper, Operation: "run",
			Err: fmt.Errorf("exceeded %s", commandTimeout)}
	}
	if err != nil {
		return out, stderrBuf, &StdlibError{Kind: StdlibSubprocessSpawn, Helper: helper, Operation: "run",
			Err: fmt.Errorf("%w: %s", err, redactArg(stderrBuf.String()))}
	}
	if stdinErr != nil {
		return out, stderrBuf, &StdlibError{Kind: StdlibSubprocessSpawn, Helper: helper, Operation: "write stdin", Err: stdinErr}
	}
	return out, stderrBuf, nil
}

// limitedWriter caps the number of bytes written, recording whether the
// cap was hit rather than returning an error — letting the subprocess run
// to completion (avoiding a broken-pipe race) while the caller decides
// afterwards whether the truncated output is actionable.
type limitedWriter struct {
	w        io.Writer
	limit    int64
	written  int64
	exceeded bool
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	if l.exceeded {
		return len(p), nil
	}
	remaining := l.limit - l.written
	if remaining <= 0 {
		l.exceeded = true
		return len(p), nil
	}
	n := int64(len(p))
	if n > remaining {
		l.w.Write(p[:remaining])
		l.exceeded = true
		l.written += remaining
		return len(p), nil
	}
	written, err := l.w.Write(p)
	l.written += int64(written)
	return written, err
}

// registerStdlib wires every template-global stdlib helper into the pongo2
// TemplateSet, split across stdlib_path.go, stdlib_file.go,
// stdlib_time.go, stdlib_which.go, stdlib_command.go, and stdlib_fetch.go
// (spec.md §4.5). The glob and env globals are registered by NewEnv.
func (e *Env) registerStdlib(globals pongo2.Context) {
	globals["basename"] = pathBasename
	globals["dirname"] = pathDirname
	globals["with_suffix"] = pathWithSuffix
	globals["relative_to"] = pathRelativeTo
	globals["realpath"] = e.pathRealpath

	globals["expanduser"] = fileExpanduser
	globals["size"] = e.fileSize
	globals["contents"] = e.fileContents
	globals["linecount"] = e.fileLinecount
	globals["hash"] = e.fileHash
	globals["digest"] = e.fileDigest

	globals["shell"] = e.globalShell
	globals["grep"] = e.globalGrep

	globals["fetch"] = e.globalFetch

	globals["now"] = e.globalNow
	globals["timedelta"] = globalTimedelta

	globals["which"] = e.globalWhich
}
