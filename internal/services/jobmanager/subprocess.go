package jobmanager

import (
	"context"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/seralab/tunex/internal/common"
	"github.com/seralab/tunex/internal/interfaces"
)

// SubprocessWorker runs a job as a child process. Combined output is
// streamed to a log file so it survives the process.
type SubprocessWorker struct {
	cmd     []string
	logPath string

	mu      sync.Mutex
	proc    *exec.Cmd
	logFile *os.File
	done    chan struct{}
	res     interfaces.WorkerResult
}

// NewSubprocessWorker builds a worker for the given argv. logPath may
// be empty to discard output.
func NewSubprocessWorker(cmd []string, logPath string) *SubprocessWorker {
	return &SubprocessWorker{cmd: cmd, logPath: logPath, done: make(chan struct{})}
}

// Start spawns the child process. It does not block.
func (w *SubprocessWorker) Start(ctx context.Context) error {
	if len(w.cmd) == 0 {
		return common.ErrInvalidInput("empty command")
	}

	proc := exec.Command(w.cmd[0], w.cmd[1:]...)
	// Own process group, so termination signals reach the whole tree.
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if w.logPath != "" {
		f, err := os.OpenFile(w.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return common.WrapError(common.KindFatal, err, "open job log %s", w.logPath)
		}
		w.logFile = f
		proc.Stdout = f
		proc.Stderr = f
	}

	if err := proc.Start(); err != nil {
		if w.logFile != nil {
			w.logFile.Close()
		}
		return common.WrapError(common.KindFatal, err, "start %s", w.cmd[0])
	}

	w.mu.Lock()
	w.proc = proc
	w.mu.Unlock()

	go func() {
		defer close(w.done)
		err := proc.Wait()
		if w.logFile != nil {
			w.logFile.Close()
		}

		res := interfaces.WorkerResult{}
		if err != nil {
			res.Err = common.WrapError(common.KindFatal, err, "%s exited abnormally", w.cmd[0])
			if ee, ok := err.(*exec.ExitError); ok {
				res.ExitCode = ee.ExitCode()
			} else {
				res.ExitCode = -1
			}
		}
		w.res = res
	}()
	return nil
}

// Pid returns the child pid, or 0 before Start.
func (w *SubprocessWorker) Pid() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.proc == nil || w.proc.Process == nil {
		return 0
	}
	return w.proc.Process.Pid
}

// Cancel delivers SIGTERM to the process group.
func (w *SubprocessWorker) Cancel() {
	w.signal(syscall.SIGTERM)
}

// Kill delivers SIGKILL to the process group after the grace period.
func (w *SubprocessWorker) Kill() {
	w.signal(syscall.SIGKILL)
}

func (w *SubprocessWorker) signal(sig syscall.Signal) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.proc == nil || w.proc.Process == nil {
		return
	}
	// Negative pid targets the process group.
	_ = syscall.Kill(-w.proc.Process.Pid, sig)
}

// Wait blocks until the child exits.
func (w *SubprocessWorker) Wait() interfaces.WorkerResult {
	<-w.done
	return w.res
}
