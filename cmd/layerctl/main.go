package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/layerctl/internal/config"
	"github.com/1broseidon/layerctl/internal/control"
	"github.com/1broseidon/layerctl/internal/daemon"
	"github.com/1broseidon/layerctl/internal/ipc"
	"github.com/1broseidon/layerctl/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "list":
		os.Exit(runList(os.Args[2:]))
	case "get":
		os.Exit(runGet(os.Args[2:]))
	case "set":
		os.Exit(runSet(os.Args[2:]))
	case "layer":
		os.Exit(runLayer(os.Args[2:]))
	case "order":
		os.Exit(runOrder(os.Args[2:]))
	case "commit":
		os.Exit(runCommit(os.Args[2:]))
	case "input":
		os.Exit(runInput(os.Args[2:]))
	case "watch":
		os.Exit(runWatch(os.Args[2:]))
	case "place":
		os.Exit(runPlace(os.Args[2:]))
	case "profile":
		os.Exit(runProfile(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: layerctl <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the layerctl daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  reload              Reload the daemon configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  list                List screens, layers, surfaces and seats")
	fmt.Fprintln(w, "  get                 Show one screen, layer or surface")
	fmt.Fprintln(w, "  set                 Change layer or surface properties")
	fmt.Fprintln(w, "  order               Replace the render order of a screen or layer")
	fmt.Fprintln(w, "  commit              Commit pending changes")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  layer create        Create a layer")
	fmt.Fprintln(w, "  layer remove        Remove a layer")
	fmt.Fprintln(w, "  layer add           Add a surface to a layer")
	fmt.Fprintln(w, "  layer detach        Remove a surface from a layer")
	fmt.Fprintln(w, "  layer arrange       Tile the surfaces of a layer")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  input seats         List seats and their capabilities")
	fmt.Fprintln(w, "  input accept        Set the seats a surface accepts input from")
	fmt.Fprintln(w, "  input focus         Set or clear input focus")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  watch               Print scene notifications")
	fmt.Fprintln(w, "  place               Put new surfaces at free random positions")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  profile save        Save the current arrangement")
	fmt.Fprintln(w, "  profile load        Restore a saved arrangement")
	fmt.Fprintln(w, "  profile list        List saved arrangements")
	fmt.Fprintln(w, "  profile delete      Delete a saved arrangement")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  tui                 Open interactive TUI")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'layerctl <command> --help' for command-specific options.")
}

// parseFlags parses args and maps the outcome to an exit code. ok is false
// when the caller should return code.
func parseFlags(fs *flag.FlagSet, args []string) (code int, ok bool) {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func newFlagSet(name, usage, about string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: "+usage)
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, about)
		hasFlags := false
		fs.VisitAll(func(*flag.Flag) { hasFlags = true })
		if hasFlags {
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Flags:")
			fs.PrintDefaults()
		}
	}
	return fs
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromPath(path)
}

// socketPath resolves the socket a client should dial: the flag, then the
// config file, then the runtime default.
func socketPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg, err := config.Load(); err == nil && cfg.SocketPath != "" {
		return cfg.SocketPath
	}
	return ""
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// connect opens a ready control context.
func connect(ctx context.Context, socket string) (*control.Context, error) {
	c := control.New(control.Config{SocketPath: socketPath(socket)})
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Init(initCtx); err != nil {
		return nil, err
	}
	return c, nil
}

// withClient connects, runs fn and tears the session down. fn's error is
// printed and mapped to exit code 1.
func withClient(socket string, fn func(ctx context.Context, c *control.Context) error) int {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := connect(ctx, socket)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer c.Destroy()

	if err := fn(ctx, c); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// settle waits for everything sent so far and fails on any protocol error
// the daemon reported.
func settle(ctx context.Context, c *control.Context) error {
	if err := c.Sync(ctx); err != nil {
		return err
	}
	var errs []error
	for {
		select {
		case perr := <-c.Errors():
			errs = append(errs, perr)
		default:
			return errors.Join(errs...)
		}
	}
}

func runDaemon(args []string) int {
	fs := newFlagSet("daemon", "layerctl daemon [--config PATH]", "Run the daemon in the foreground.")
	path := fs.String("config", "", "Config file path (default: ~/.config/layerctl/config.yaml)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*path)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Configuration loaded (backend: %s, commit interval: %s)", cfg.Backend, cfg.CommitInterval)

	configPath := *path
	if configPath == "" {
		configPath, _ = config.DefaultConfigPath()
	}
	if err := daemon.Run(context.Background(), cfg, daemon.Options{ConfigPath: configPath}); err != nil {
		log.Fatalf("Daemon error: %v", err)
	}
	log.Println("layerctl daemon stopped")
	return 0
}

func runStatus(args []string) int {
	fs := newFlagSet("status", "layerctl status [--socket PATH]", "Show daemon status via IPC.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	status, err := ipc.NewClient(socketPath(*socket)).GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running: %v\n", status.DaemonRunning)
	fmt.Printf("backend:        %s\n", status.Backend)
	fmt.Printf("screens:        %d\n", status.Screens)
	fmt.Printf("layers:         %d\n", status.Layers)
	fmt.Printf("surfaces:       %d\n", status.Surfaces)
	fmt.Printf("seats:          %d\n", status.Seats)
	fmt.Printf("sessions:       %d\n", status.Sessions)
	fmt.Printf("commits:        %d\n", status.Commits)
	fmt.Printf("uptime_seconds: %d\n", status.UptimeSeconds)
	return 0
}

func runReload(args []string) int {
	fs := newFlagSet("reload", "layerctl reload [--socket PATH]", "Ask the daemon to reload its configuration file.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if err := ipc.NewClient(socketPath(*socket)).Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("reload: ok")
	return 0
}

func runCommit(args []string) int {
	fs := newFlagSet("commit", "layerctl commit [--socket PATH]", "Commit pending scene changes.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		if err := c.Commit(); err != nil {
			return err
		}
		return settle(ctx, c)
	})
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  layerctl config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  layerctl config print [--path PATH] [--defaults]")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/layerctl/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfig(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/layerctl/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			var err error
			if cfg, err = loadConfig(*path); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

func runTUI(args []string) int {
	fs := newFlagSet("tui", "layerctl tui [--socket PATH]", "Browse and edit the running scene.")
	socket := fs.String("socket", "", "Control socket path")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	return withClient(*socket, func(ctx context.Context, c *control.Context) error {
		return tui.Run(ctx, c)
	})
}
