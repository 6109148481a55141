package server

import (
	"context"
	"fmt"

	"github.com/core-tools/hsu-sysd/pkg/errors"
	"github.com/core-tools/hsu-sysd/pkg/logging"
	"github.com/core-tools/hsu-sysd/pkg/protocol"
	"github.com/core-tools/hsu-sysd/pkg/supervisor"
	"github.com/core-tools/hsu-sysd/pkg/unit"

	"github.com/google/uuid"
)

const descriptionNotProvided = "Not provided"

// Dispatcher executes decoded commands against the registry and the
// supervisor. Every outcome, failures included, becomes response text.
type Dispatcher struct {
	registry   *unit.Registry
	supervisor *supervisor.Supervisor
	logger     logging.Logger
}

func NewDispatcher(registry *unit.Registry, supervisor *supervisor.Supervisor, logger logging.Logger) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		supervisor: supervisor,
		logger:     logger,
	}
}

// Handle decodes one request payload and returns the encoded response
func (d *Dispatcher) Handle(payload []byte) []byte {
	exchangeID := uuid.NewString()

	if len(payload) == 0 {
		d.logger.Warnf("Empty request, exchange: %s", exchangeID)
		return []byte("No command provided.")
	}

	request, err := protocol.Decode(payload)
	if err != nil {
		d.logger.Warnf("Failed to parse command, exchange: %s, error: %v", exchangeID, err)
		return []byte(fmt.Sprintf("Failed to parse command: %v", err))
	}

	d.logger.Infof("Handling request, exchange: %s, request: %s", exchangeID, request)
	response := d.Execute(context.Background(), request)
	d.logger.Debugf("Request handled, exchange: %s, response: %q", exchangeID, response)
	return []byte(response)
}

// Execute runs a validated request
func (d *Dispatcher) Execute(ctx context.Context, request protocol.Request) string {
	switch request.Command {
	case protocol.CommandStart:
		return d.start(request.Name)
	case protocol.CommandStop:
		return d.stop(ctx, request.Name)
	case protocol.CommandStatus:
		return d.status(request.Name)
	case protocol.CommandReloadConfig:
		return d.reload()
	default:
		return fmt.Sprintf("Failed to parse command: unknown command %s", request.Command)
	}
}

func (d *Dispatcher) start(name string) string {
	service, ok := unit.Lookup(d.registry, name, func(definition *unit.Definition) unit.ServiceSection {
		return definition.Service
	})
	if !ok {
		return fmt.Sprintf("Cannot Find Service `%s`", name)
	}

	if err := d.supervisor.Spawn(name, service); err != nil {
		d.logger.Errorf("Failed to start service, name: %s, error: %v", name, err)
		return fmt.Sprintf("Failed to start service `%s`: %v", name, err)
	}
	return fmt.Sprintf("Service `%s` started successfully.", name)
}

func (d *Dispatcher) stop(ctx context.Context, name string) string {
	if err := d.supervisor.Stop(ctx, name); err != nil {
		d.logger.Errorf("Failed to stop service, name: %s, error: %v", name, err)
		return fmt.Sprintf("Failed to stop service `%s`: %v", name, err)
	}
	return fmt.Sprintf("Service `%s` stopped successfully.", name)
}

type statusView struct {
	description string
	style       unit.StartupStyle
}

func (d *Dispatcher) status(name string) string {
	view, ok := unit.Lookup(d.registry, name, func(definition *unit.Definition) statusView {
		return statusView{
			description: definition.DescriptionOr(descriptionNotProvided),
			style:       definition.Service.Style,
		}
	})
	if !ok {
		return fmt.Sprintf("Failed to get config for service `%s`", name)
	}

	return fmt.Sprintf("%s - %s\n%-7s:%s \n%-7s:%s \n",
		name, view.description,
		"Type", view.style,
		"Status", d.liveness(name))
}

func (d *Dispatcher) liveness(name string) string {
	err := d.supervisor.Check(name)
	switch {
	case err == nil:
		return "Running"
	case errors.IsNotFoundError(err):
		return "NotRunning"
	case errors.IsExitedError(err):
		code, _ := errors.ExitCode(err)
		return fmt.Sprintf("Exited(%d)", code)
	default:
		return err.Error()
	}
}

func (d *Dispatcher) reload() string {
	if err := d.registry.Load(); err != nil {
		return fmt.Sprintf("Error reloading configuration: %v", err)
	}
	return "Configuration reloaded successfully."
}
