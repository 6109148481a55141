package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	sprintfLogging "github.com/core-tools/hsu-core/pkg/logging/sprintf"

	"github.com/core-tools/hsu-sysd/pkg/client"
	"github.com/core-tools/hsu-sysd/pkg/logging"
	"github.com/core-tools/hsu-sysd/pkg/processfile"
	"github.com/core-tools/hsu-sysd/pkg/protocol"
	"github.com/core-tools/hsu-sysd/pkg/server"
	"github.com/core-tools/hsu-sysd/pkg/singleton"

	flags "github.com/jessevdk/go-flags"
)

const defaultConfigFileName = "sysd.yaml"

type unitArgs struct {
	Name string `positional-arg-name:"name" required:"yes"`
}

type startCommand struct {
	Args unitArgs `positional-args:"yes"`
}

type stopCommand struct {
	Args unitArgs `positional-args:"yes"`
}

type statusCommand struct {
	Args unitArgs `positional-args:"yes"`
}

type reloadConfigCommand struct{}

type runCommand struct{}

type flagOptions struct {
	Config  string `long:"config" description:"path to the settings file (default: sysd.yaml beside the executable)"`
	Verbose bool   `short:"v" long:"verbose" description:"print client diagnostics"`

	Start        startCommand        `command:"start" description:"Start a service"`
	Stop         stopCommand         `command:"stop" description:"Stop a service"`
	Status       statusCommand       `command:"status" description:"Show the status of a service"`
	ReloadConfig reloadConfigCommand `command:"reload-config" description:"Reload the unit files"`
	Run          runCommand          `command:"run" description:"Run the server in the foreground"`
}

// exitError carries a process exit code without extra output
type exitError int

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", int(e))
}

var opts flagOptions

// Lease outcomes go to stderr so stdout carries only server responses
var stderr io.Writer = os.Stderr

func main() {
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	_, err := parser.Parse()
	if err == nil {
		return
	}

	var code exitError
	if stderrors.As(err, &code) {
		os.Exit(int(code))
	}

	var flagsErr *flags.Error
	if stderrors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
		fmt.Println(err)
		return
	}

	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func (c *startCommand) Execute(args []string) error {
	return sendCommand(protocol.NewRequest(protocol.CommandStart, c.Args.Name))
}

func (c *stopCommand) Execute(args []string) error {
	return sendCommand(protocol.NewRequest(protocol.CommandStop, c.Args.Name))
}

func (c *statusCommand) Execute(args []string) error {
	return sendCommand(protocol.NewRequest(protocol.CommandStatus, c.Args.Name))
}

func (c *reloadConfigCommand) Execute(args []string) error {
	return sendCommand(protocol.NewRequest(protocol.CommandReloadConfig, ""))
}

func (c *runCommand) Execute(args []string) error {
	return runServer()
}

func cliLogger() logging.Logger {
	if !opts.Verbose {
		return logging.NewNopLogger()
	}
	logger := sprintfLogging.NewStdSprintfLogger()
	return logging.NewLogger("module: sysd-client , ", logging.LogFuncs{
		Debugf: logger.Debugf,
		Infof:  logger.Infof,
		Warnf:  logger.Warnf,
		Errorf: logger.Errorf,
	})
}

// loadConfig reads --config, or the default settings file when present
func loadConfig() (*server.Config, error) {
	var (
		config *server.Config
		err    error
	)
	if opts.Config != "" {
		config, err = server.LoadConfigFromFile(opts.Config)
	} else {
		defaultLayout := processfile.NewProcessFileManager(processfile.ProcessFileConfig{}, logging.NewNopLogger())
		config, err = server.LoadConfigOrDefault(filepath.Join(defaultLayout.BaseDirectory(), defaultConfigFileName))
	}
	if err != nil {
		return nil, err
	}
	if err := server.ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// sendCommand forwards one command to the running server. Owning the lease
// means no server holds it.
func sendCommand(request protocol.Request) error {
	logger := cliLogger()

	config, err := loadConfig()
	if err != nil {
		return err
	}
	layout := processfile.NewProcessFileManager(config.ProcessFileConfig(), logger)

	lease, err := singleton.Acquire(layout.LockID())
	if err != nil {
		return err
	}
	owner := lease.Owner()
	if err := lease.Release(); err != nil {
		logger.Warnf("Failed to release lease: %v", err)
	}

	if owner {
		fmt.Fprintln(stderr, client.MessageNotRunning)
		return exitError(1)
	}

	c := client.NewClient(layout.EndpointAddress(), config.Server.StopTimeout+client.DefaultTimeout, logger)
	response, err := c.Do(context.Background(), request)
	if err != nil {
		fmt.Println(client.Describe(err))
		return exitError(1)
	}
	fmt.Println(strings.TrimRight(response, "\n"))
	return nil
}

// runServer runs the server in the foreground until "exit" on stdin,
// SIGINT or SIGTERM
func runServer() error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	layout := processfile.NewProcessFileManager(config.ProcessFileConfig(), logging.NewNopLogger())

	return singleton.With(layout.LockID(), func(lease *singleton.Lease) error {
		if !lease.Owner() {
			fmt.Fprintln(stderr, "Service is already running.")
			return exitError(1)
		}

		if err := processfile.EnsureDirectory(layout.BaseDirectory()); err != nil {
			return err
		}
		logFile, err := os.OpenFile(layout.ServerLogFilePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open server log: %w", err)
		}
		defer logFile.Close()

		zapLogger, err := logging.NewZapLogger(logging.ZapOptions{
			Level:   config.Server.LogLevel,
			Writers: []io.Writer{logFile, os.Stderr},
		})
		if err != nil {
			return err
		}
		defer zapLogger.Sync()

		srv, err := server.NewServer(config, zapLogger.Logger)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := srv.Run(ctx); err != nil {
			zapLogger.Errorf("Failed to run server: %v", err)
			return err
		}

		fmt.Println("Server is running. Type 'exit' to stop.")
		go waitForExit(os.Stdin, cancel)

		<-ctx.Done()
		srv.Stop()
		return nil
	})
}

// waitForExit cancels once a line reading "exit" arrives; EOF leaves the
// server running so it can be started with stdin detached
func waitForExit(r io.Reader, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "exit") {
			cancel()
			return
		}
	}
}
