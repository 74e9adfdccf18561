// Package power keeps the machine awake while scheduled scans are enabled by
// holding an OS inhibitor process open.
package power

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"go-openclaw-scanner/internal/ports"
)

var ErrUnsupported = errors.New("sleep prevention is not supported on this platform")

// Inhibitor starts one helper process per Prevent call.
type Inhibitor struct {
	command func() (*exec.Cmd, error)
	logger  zerolog.Logger
}

func NewInhibitor(logger zerolog.Logger) *Inhibitor {
	return &Inhibitor{
		command: platformCommand,
		logger:  logger.With().Str("component", "power").Logger(),
	}
}

func platformCommand() (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "linux":
		return exec.Command("systemd-inhibit",
			"--what=idle:sleep", "--who=openclaw-scanner", "--why=Scheduled job scans", "--mode=block",
			"sleep", "infinity"), nil
	case "darwin":
		return exec.Command("caffeinate", "-i"), nil
	default:
		return nil, ErrUnsupported
	}
}

// Prevent blocks system sleep until the returned handle is released.
func (i *Inhibitor) Prevent() (ports.SleepHandle, error) {
	cmd, err := i.command()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cmd.Path, err)
	}

	h := &handle{cmd: cmd, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	i.logger.Debug().Int("pid", cmd.Process.Pid).Msg("Sleep inhibitor started")
	return h, nil
}

type handle struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
	once    sync.Once
	err     error
}

// Release stops the inhibitor process. Safe to call more than once.
func (h *handle) Release() error {
	h.once.Do(func() {
		select {
		case <-h.done:
			return
		default:
		}
		if err := h.cmd.Process.Kill(); err != nil {
			h.err = fmt.Errorf("stop inhibitor: %w", err)
			return
		}
		<-h.done
	})
	return h.err
}

// Alive reports whether the inhibitor process is still running.
func (h *handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
