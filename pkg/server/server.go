package server

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/core-tools/hsu-sysd/pkg/control"
	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/logging"
	"github.com/core-tools/hsu-sysd/pkg/processfile"
	"github.com/core-tools/hsu-sysd/pkg/processstate"
	"github.com/core-tools/hsu-sysd/pkg/protocol"
	"github.com/core-tools/hsu-sysd/pkg/supervisor"
	"github.com/core-tools/hsu-sysd/pkg/unit"

	"vawter.tech/stopper"
)

// ServerState represents the lifecycle state of the server
type ServerState string

const (
	// ServerStateNotStarted is the initial state before Run() is called
	ServerStateNotStarted ServerState = "not_started"

	// ServerStateRunning means the endpoint exists and the worker serves requests
	ServerStateRunning ServerState = "running"

	// ServerStateStopping means Stop() is waiting for the worker
	ServerStateStopping ServerState = "stopping"

	// ServerStateStopped means the worker has terminated
	ServerStateStopped ServerState = "stopped"
)

const serveRetryDelay = 100 * time.Millisecond

// Server owns the control endpoint and serves one exchange at a time on a
// single worker goroutine
type Server struct {
	config     *Config
	layout     *processfile.ProcessFileManager
	registry   *unit.Registry
	supervisor *supervisor.Supervisor
	dispatcher *Dispatcher

	listener *control.Listener
	sctx     *stopper.Context
	stopped  chan struct{}

	state  ServerState
	mutex  sync.Mutex
	logger logging.Logger
}

func NewServer(config *Config, logger logging.Logger) (*Server, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	layout := processfile.NewProcessFileManager(config.ProcessFileConfig(), logging.WithPrefix(logger, "layout: "))
	registry := unit.NewRegistry(layout.UnitsDirectoryPath(), logging.WithPrefix(logger, "registry: "))
	processSupervisor := supervisor.NewSupervisor(supervisor.Options{
		LogDirectory: layout.LogDirectoryPath(),
		StopTimeout:  config.Server.StopTimeout,
	}, logging.WithPrefix(logger, "supervisor: "))

	return &Server{
		config:     config,
		layout:     layout,
		registry:   registry,
		supervisor: processSupervisor,
		dispatcher: NewDispatcher(registry, processSupervisor, logging.WithPrefix(logger, "dispatcher: ")),
		state:      ServerStateNotStarted,
		logger:     logger,
	}, nil
}

func (s *Server) Layout() *processfile.ProcessFileManager {
	return s.layout
}

func (s *Server) Registry() *unit.Registry {
	return s.registry
}

func (s *Server) Supervisor() *supervisor.Supervisor {
	return s.supervisor
}

func (s *Server) State() ServerState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Run creates the control endpoint and starts the worker. It returns once
// the server accepts connections; it is a no-op while running. Cancelling
// ctx stops the server.
func (s *Server) Run(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state == ServerStateRunning {
		s.logger.Debugf("Server already running")
		return nil
	}

	s.logger.Infof("Starting server, name: %s, base directory: %s", s.layout.AppName(), s.layout.BaseDirectory())

	if err := processfile.EnsureDirectory(s.layout.UnitsDirectoryPath()); err != nil {
		return errors.NewIOError("failed to prepare units directory", err)
	}

	listener, err := control.Listen(s.layout.EndpointAddress(), logging.WithPrefix(s.logger, "control: "))
	if err != nil {
		return err
	}

	s.checkStalePIDFile()
	if err := s.layout.WritePIDFile(os.Getpid()); err != nil {
		_ = listener.Close()
		return err
	}

	s.listener = listener
	s.stopped = make(chan struct{})
	s.sctx = stopper.WithContext(context.Background())
	s.sctx.Go(s.work)

	if s.config.Server.WatchUnits {
		err := unit.Watch(s.sctx, s.registry.Directory(), s.config.Server.WatchDebounce,
			logging.WithPrefix(s.logger, "watcher: "), s.requestReload)
		if err != nil {
			s.logger.Warnf("Units watcher disabled: %v", err)
		}
	}

	s.state = ServerStateRunning

	stopped := s.stopped
	go func() {
		select {
		case <-ctx.Done():
			s.logger.Infof("Server context done, stopping")
			s.Stop()
		case <-stopped:
		}
	}()

	s.logger.Infof("Server started, endpoint: %s", listener.Address())
	return nil
}

// Stop wakes the worker, waits for the exchange in progress to finish and
// removes the PID file. It is a no-op unless the server is running.
func (s *Server) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != ServerStateRunning {
		return
	}

	s.logger.Infof("Stopping server...")
	s.state = ServerStateStopping

	s.sctx.Stop(s.config.Server.StopTimeout)
	if err := s.listener.Close(); err != nil {
		s.logger.Warnf("Failed to close control endpoint: %v", err)
	}
	if err := s.sctx.Wait(); err != nil {
		s.logger.Warnf("Server worker finished with error: %v", err)
	}

	if err := s.layout.RemovePIDFile(); err != nil {
		s.logger.Warnf("Failed to remove PID file: %v", err)
	}

	close(s.stopped)
	s.state = ServerStateStopped
	s.logger.Infof("Server stopped")
}

// work boots the units and then serves exchanges until the server stops
func (s *Server) work(sctx *stopper.Context) error {
	s.boot()

	for !sctx.IsStopping() {
		err := s.listener.ServeOne(s.dispatcher.Handle)
		if err == nil {
			continue
		}
		if control.IsClosed(err) {
			return nil
		}
		s.logger.Warnf("Control exchange failed: %v", err)

		select {
		case <-sctx.Stopping():
		case <-time.After(serveRetryDelay):
		}
	}
	return nil
}

// boot loads the units and starts the ones with the Startup style
func (s *Server) boot() {
	if err := s.registry.Load(); err != nil {
		s.logger.Errorf("Failed to load units at boot: %v", err)
		return
	}

	var startup []*unit.Definition
	s.registry.ForEach(func(definition *unit.Definition) {
		if definition.IsStartup() {
			startup = append(startup, definition)
		}
	})

	collection := errors.NewErrorCollection()
	for _, definition := range startup {
		if err := s.supervisor.Spawn(definition.Name(), definition.Service); err != nil {
			collection.Add(errors.NewProcessError("failed to start unit at boot", err).WithContext("name", definition.Name()))
		}
	}

	if err := collection.ToError(); err != nil {
		s.logger.Errorf("Startup units failed, count: %d, error: %v", len(collection.Errors), err)
	}
	s.logger.Infof("Boot complete, units: %d, startup units: %d", s.registry.Len(), len(startup))
}

// requestReload goes through the control endpoint so reloads are ordered
// with the other commands
func (s *Server) requestReload() {
	payload, err := protocol.Encode(protocol.NewRequest(protocol.CommandReloadConfig, ""))
	if err != nil {
		s.logger.Errorf("Failed to encode reload request: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), control.IOTimeout)
	defer cancel()

	response, err := control.Send(ctx, s.layout.EndpointAddress(), payload)
	if err != nil {
		if control.IsUnavailable(err) {
			s.logger.Debugf("Reload request skipped, server not listening")
			return
		}
		s.logger.Warnf("Reload request failed: %v", err)
		return
	}
	s.logger.Infof("Units directory changed: %s", response)
}

func (s *Server) checkStalePIDFile() {
	pid, err := s.layout.ReadPIDFile()
	if err != nil || pid == os.Getpid() {
		return
	}
	running, err := processstate.IsProcessRunning(pid)
	if err != nil {
		s.logger.Debugf("Failed to probe PID from PID file, pid: %d, error: %v", pid, err)
		return
	}
	if running {
		s.logger.Warnf("PID file names a live process, overwriting, pid: %d", pid)
	} else {
		s.logger.Infof("Replacing stale PID file, pid: %d", pid)
	}
}
