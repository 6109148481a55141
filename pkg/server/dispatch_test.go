package server

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/logging"
	"github.com/core-tools/hsu-sysd/pkg/protocol"
	"github.com/core-tools/hsu-sysd/pkg/supervisor"
	"github.com/core-tools/hsu-sysd/pkg/unit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchFixture struct {
	dir        string
	registry   *unit.Registry
	supervisor *supervisor.Supervisor
	dispatcher *Dispatcher
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	dir := t.TempDir()
	registry := unit.NewRegistry(dir, logging.NewNopLogger())
	s := supervisor.NewSupervisor(supervisor.Options{
		LogDirectory: t.TempDir(),
		StopTimeout:  5 * time.Second,
	}, logging.NewNopLogger())
	t.Cleanup(func() { _ = s.StopAll(context.Background()) })

	return &dispatchFixture{
		dir:        dir,
		registry:   registry,
		supervisor: s,
		dispatcher: NewDispatcher(registry, s, logging.NewNopLogger()),
	}
}

func (f *dispatchFixture) handle(t *testing.T, command protocol.Command, name string) string {
	t.Helper()
	payload, err := protocol.Encode(protocol.NewRequest(command, name))
	require.NoError(t, err)
	return string(f.dispatcher.Handle(payload))
}

func TestDispatcher_StartStatusStop(t *testing.T) {
	f := newDispatchFixture(t)
	writeHelperUnit(t, f.dir, "web", "Simple", "sleep")
	require.NoError(t, f.registry.Load())

	assert.Equal(t, "web - helper sleep\nType   :Simple \nStatus :NotRunning \n",
		f.handle(t, protocol.CommandStatus, "web"))

	assert.Equal(t, "Service `web` started successfully.", f.handle(t, protocol.CommandStart, "web"))
	assert.Equal(t, "web - helper sleep\nType   :Simple \nStatus :Running \n",
		f.handle(t, protocol.CommandStatus, "web"))

	assert.Contains(t, f.handle(t, protocol.CommandStart, "web"), "Failed to start service `web`: ")

	assert.Equal(t, "Service `web` stopped successfully.", f.handle(t, protocol.CommandStop, "web"))
	assert.Contains(t, f.handle(t, protocol.CommandStatus, "web"), "Status :NotRunning \n")
}

func TestDispatcher_ExitedStatus(t *testing.T) {
	f := newDispatchFixture(t)
	writeHelperUnit(t, f.dir, "job", "Startup", "exit")
	require.NoError(t, f.registry.Load())

	assert.Equal(t, "Service `job` started successfully.", f.handle(t, protocol.CommandStart, "job"))
	assert.Eventually(t, func() bool {
		return errors.IsExitedError(f.supervisor.Check("job"))
	}, 10*time.Second, 10*time.Millisecond)

	assert.Equal(t, "job - helper exit\nType   :Startup \nStatus :Exited(4) \n",
		f.handle(t, protocol.CommandStatus, "job"))

	// Exited entries are replaced on start
	writeHelperUnit(t, f.dir, "job", "Startup", "sleep")
	require.NoError(t, f.registry.Load())
	assert.Equal(t, "Service `job` started successfully.", f.handle(t, protocol.CommandStart, "job"))
}

func TestDispatcher_UnknownUnit(t *testing.T) {
	f := newDispatchFixture(t)
	require.NoError(t, f.registry.Load())

	assert.Equal(t, "Cannot Find Service `ghost`", f.handle(t, protocol.CommandStart, "ghost"))
	assert.Equal(t, "Failed to get config for service `ghost`", f.handle(t, protocol.CommandStatus, "ghost"))
	assert.Contains(t, f.handle(t, protocol.CommandStop, "ghost"), "Failed to stop service `ghost`: ")
	assert.Empty(t, f.supervisor.Names())
}

func TestDispatcher_StatusWithoutDescription(t *testing.T) {
	f := newDispatchFixture(t)
	content := "[unit]\nname = \"plain\"\n\n[service]\ntype = \"simple\"\npath = \"/bin/plain\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "plain.toml"), []byte(content), 0644))
	require.NoError(t, f.registry.Load())

	assert.Equal(t, "plain - Not provided\nType   :Simple \nStatus :NotRunning \n",
		f.handle(t, protocol.CommandStatus, "plain"))
}

func TestDispatcher_StartFailure(t *testing.T) {
	f := newDispatchFixture(t)
	content := "[unit]\nname = \"broken\"\n[service]\ntype = \"Simple\"\npath = \"" +
		filepath.ToSlash(filepath.Join(t.TempDir(), "missing")) + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "broken.toml"), []byte(content), 0644))
	require.NoError(t, f.registry.Load())

	response := f.handle(t, protocol.CommandStart, "broken")
	assert.Contains(t, response, "Failed to start service `broken`: ")
	assert.Empty(t, f.supervisor.Names())
}

func TestDispatcher_Reload(t *testing.T) {
	f := newDispatchFixture(t)
	writeHelperUnit(t, f.dir, "web", "Simple", "sleep")
	require.NoError(t, f.registry.Load())

	assert.Equal(t, "Service `web` started successfully.", f.handle(t, protocol.CommandStart, "web"))

	// Removing a unit keeps its process tracked
	require.NoError(t, os.Remove(filepath.Join(f.dir, "web.toml")))
	writeHelperUnit(t, f.dir, "db", "Simple", "sleep")
	assert.Equal(t, "Configuration reloaded successfully.", f.handle(t, protocol.CommandReloadConfig, ""))

	assert.Equal(t, "Failed to get config for service `web`", f.handle(t, protocol.CommandStatus, "web"))
	assert.NoError(t, f.supervisor.Check("web"))
	assert.Equal(t, "Service `web` stopped successfully.", f.handle(t, protocol.CommandStop, "web"))

	// A malformed file keeps the previous snapshot
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "bad.toml"), []byte("[unit"), 0644))
	assert.Contains(t, f.handle(t, protocol.CommandReloadConfig, ""), "Error reloading configuration: ")
	assert.Equal(t, []string{"db"}, f.registry.Names())
}

func TestDispatcher_BadPayloads(t *testing.T) {
	f := newDispatchFixture(t)

	assert.Equal(t, "No command provided.", string(f.dispatcher.Handle(nil)))
	assert.Contains(t, string(f.dispatcher.Handle([]byte{0xff, 0xff})), "Failed to parse command: ")
	assert.Contains(t, string(f.dispatcher.Handle([]byte{0x08, 0x09})), "Failed to parse command: ")
}
