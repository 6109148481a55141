package supervisor

import (
	"context"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/logging"
	"github.com/core-tools/hsu-sysd/pkg/unit"
)

const DefaultStopTimeout = 10 * time.Second

type Options struct {
	// Directory for <name>-stdout.log / <name>-stderr.log of units that
	// don't configure their own output files
	LogDirectory string

	// Upper bound on waiting for a killed process to exit
	StopTimeout time.Duration
}

// Supervisor owns the OS handles of the processes it launched, keyed by unit name.
// One mutex serializes all operations on the table.
type Supervisor struct {
	options   Options
	processes map[string]*process
	mutex     sync.Mutex
	logger    logging.Logger
}

type process struct {
	name      string
	handle    *os.Process
	startedAt time.Time

	// closed by the waiter once the process has been reaped
	done     chan struct{}
	exitCode int
}

func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func NewSupervisor(options Options, logger logging.Logger) *Supervisor {
	if options.StopTimeout <= 0 {
		options.StopTimeout = DefaultStopTimeout
	}
	if options.LogDirectory == "" {
		options.LogDirectory = os.TempDir()
	}
	return &Supervisor{
		options:   options,
		processes: make(map[string]*process),
		logger:    logger,
	}
}

// Spawn launches the unit's process and records it under name. A live entry
// is a conflict; an entry whose process already exited is replaced.
func (s *Supervisor) Spawn(name string, service unit.ServiceSection) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if existing, ok := s.processes[name]; ok {
		if !existing.exited() {
			return errors.NewConflictError("process already running", nil).
				WithContext("name", name).WithContext("pid", existing.handle.Pid)
		}
		s.logger.Infof("Replacing exited process, name: %s, pid: %d, exit code: %d", name, existing.handle.Pid, existing.exitCode)
		delete(s.processes, name)
	}

	cmd, err := s.command(name, service)
	if err != nil {
		return err
	}

	p := &process{
		name:      name,
		handle:    cmd.Process,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	go func() {
		// A non-zero exit surfaces through the exit code
		_ = cmd.Wait()
		p.exitCode = cmd.ProcessState.ExitCode()
		s.logger.Infof("Process exited, name: %s, pid: %d, exit code: %d", name, p.handle.Pid, p.exitCode)
		close(p.done)
	}()

	s.processes[name] = p
	s.logger.Infof("Process started, name: %s, pid: %d", name, p.handle.Pid)
	return nil
}

// Check reports liveness without blocking: nil when running, a not-found
// error for unknown names and an exited error carrying the exit code otherwise.
func (s *Supervisor) Check(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.processes[name]
	if !ok {
		return errors.NewNotFoundError("process not found", nil).WithContext("name", name)
	}
	if p.exited() {
		return errors.NewExitedError(p.exitCode).WithContext("name", name)
	}
	return nil
}

// Stop removes the entry, kills the process group and waits for the exit,
// bounded by ctx and the stop timeout.
func (s *Supervisor) Stop(ctx context.Context, name string) error {
	s.mutex.Lock()
	p, ok := s.processes[name]
	if !ok {
		s.mutex.Unlock()
		return errors.NewNotFoundError("process not found", nil).WithContext("name", name)
	}
	delete(s.processes, name)

	var killErr error
	if !p.exited() {
		killErr = killProcess(p.handle)
	}
	s.mutex.Unlock()

	if killErr != nil {
		s.logger.Errorf("Failed to kill process, name: %s, pid: %d, error: %v", name, p.handle.Pid, killErr)
		return errors.NewProcessError("failed to kill process", killErr).WithContext("name", name).WithContext("pid", p.handle.Pid)
	}

	timer := time.NewTimer(s.options.StopTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		s.logger.Infof("Process stopped, name: %s, pid: %d, uptime: %s", name, p.handle.Pid, time.Since(p.startedAt).Round(time.Millisecond))
		return nil
	case <-timer.C:
		return errors.NewTimeoutError("timed out waiting for process exit", nil).
			WithContext("name", name).WithContext("timeout", s.options.StopTimeout.String())
	case <-ctx.Done():
		return errors.NewCancelledError("stop cancelled", ctx.Err()).WithContext("name", name)
	}
}

// StopAll stops every tracked process
func (s *Supervisor) StopAll(ctx context.Context) error {
	collection := errors.NewErrorCollection()
	for _, name := range s.Names() {
		if err := s.Stop(ctx, name); err != nil && !errors.IsNotFoundError(err) {
			collection.Add(err)
		}
	}
	return collection.ToError()
}

// Names returns the tracked names, exited ones included
func (s *Supervisor) Names() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	names := make([]string, 0, len(s.processes))
	for name := range s.processes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PID returns the OS process id of a tracked entry
func (s *Supervisor) PID(name string) (int, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	p, ok := s.processes[name]
	if !ok {
		return 0, false
	}
	return p.handle.Pid, true
}
