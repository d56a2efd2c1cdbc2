package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kardianos/service"

	"github.com/ariabridge/bridge-client/internal/bridge"
	"github.com/ariabridge/bridge-client/internal/config"
	"github.com/ariabridge/bridge-client/internal/controlhandlers"
)

const (
	serviceName        = "AriaBridgeAgent"
	serviceDisplayName = "Aria Bridge Agent"
	serviceDescription = "Ships console/error telemetry to the Aria Bridge host and answers its control requests"
)

// agent implements kardianos/service.Interface for the agent's process
// lifecycle when it runs under the OS service manager; interactive and -run
// launches drive the client directly.
type agent struct {
	client *bridge.Client
	cancel context.CancelFunc
}

func (a *agent) Start(s service.Service) error {
	go a.run()
	return nil
}

func (a *agent) Stop(s service.Service) error {
	slog.Info("service stop requested")
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *agent) run() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer cancel()

	a.client.RunWithReconnect(ctx)
	slog.Info("agent shut down cleanly")
}

func main() {
	var (
		configPath  = flag.String("config", "", "path to config file (default: "+config.DefaultConfigPath+")")
		doInstall   = flag.Bool("install", false, "install as an OS service")
		doUninstall = flag.Bool("uninstall", false, "uninstall the OS service")
		doRun       = flag.Bool("run", false, "run in foreground (non-service mode)")
	)
	flag.Parse()

	initLogger("info")

	bridgeCfg, fc, err := config.Load(*configPath)
	if err != nil && !*doInstall && !*doUninstall {
		if service.Interactive() {
			fmt.Println()
			fmt.Println("  ======================================")
			fmt.Println("     Aria Bridge Agent - First Run")
			fmt.Println("  ======================================")
			fmt.Println()

			bridgeCfg, fc, err = runFirstTimeSetup(*configPath)
			if err != nil {
				fmt.Printf("\n  Setup failed: %v\n", err)
				fmt.Println("\n  Press Enter to exit...")
				bufio.NewReader(os.Stdin).ReadBytes('\n')
				os.Exit(1)
			}
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	initLogger(fc.LogLevel)

	client := bridge.New(bridgeCfg)
	registerExampleHandlers(client)

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		Arguments:   []string{},
	}

	ag := &agent{client: client}
	svc, err := service.New(ag, svcConfig)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	switch {
	case *doInstall:
		if err := svc.Install(); err != nil {
			slog.Error("failed to install service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service installed successfully:", serviceName)
		return

	case *doUninstall:
		if err := svc.Stop(); err != nil {
			slog.Warn("failed to stop service (may not be running)", "error", err)
		}
		if err := svc.Uninstall(); err != nil {
			slog.Error("failed to uninstall service", "error", err)
			os.Exit(1)
		}
		fmt.Println("Service uninstalled successfully:", serviceName)
		return

	case *doRun:
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		slog.Info("starting agent in foreground mode", "url", bridgeCfg.URL)
		client.RunWithReconnect(ctx)
		return

	default:
		if service.Interactive() {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			fmt.Println()
			fmt.Println("  Aria Bridge Agent is running.")
			fmt.Println("  Press Ctrl+C to stop.")
			fmt.Println()

			client.RunWithReconnect(ctx)
		} else {
			if err := svc.Run(); err != nil {
				slog.Error("service run failed", "error", err)
				os.Exit(1)
			}
		}
	}
}

// registerExampleHandlers wires the standard ping/echo/status control
// handlers into client, so a driving host always gets a sensible answer to
// those three actions out of the box.
func registerExampleHandlers(client *bridge.Client) {
	registry := controlhandlers.NewRegistry(client, time.Now())
	client.OnControl(registry.Dispatch)
}

// runFirstTimeSetup runs an interactive console wizard when the configuration
// cannot be loaded, writing a minimal agent.yaml and returning it loaded.
func runFirstTimeSetup(configPath string) (bridge.Config, config.FileConfig, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("  This is your first time running the Aria Bridge Agent.")
	fmt.Println("  Let's connect this machine to your bridge host.")
	fmt.Println()

	fmt.Print("  Bridge URL [ws://localhost:9876]: ")
	url, _ := reader.ReadString('\n')
	url = strings.TrimSpace(url)
	if url == "" {
		url = "ws://localhost:9876"
	}

	fmt.Print("  Shared Secret: ")
	secret, _ := reader.ReadString('\n')
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return bridge.Config{}, config.FileConfig{}, fmt.Errorf("shared secret is required")
	}

	fmt.Print("  Project ID (optional): ")
	projectID, _ := reader.ReadString('\n')
	projectID = strings.TrimSpace(projectID)

	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath
	}

	fmt.Println()
	fmt.Printf("  Writing config to: %s\n", cfgPath)

	configContent := fmt.Sprintf(`# Aria Bridge Agent Configuration
# Generated by first-run setup

url: "%s"
secret: "%s"
project_id: "%s"
capabilities:
  - "console"
  - "error"
data_dir: "%s"
log_level: "info"
`, url, secret, projectID, config.DefaultDataDir)

	if err := os.MkdirAll(dirOf(cfgPath), 0o700); err != nil {
		return bridge.Config{}, config.FileConfig{}, fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, []byte(configContent), 0o600); err != nil {
		return bridge.Config{}, config.FileConfig{}, fmt.Errorf("writing config file: %w", err)
	}

	fmt.Println("  Config saved!")
	fmt.Println()
	fmt.Println("  Starting agent...")

	return config.Load(cfgPath)
}

func dirOf(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return "."
	}
	return path[:idx]
}

// initLogger configures the global slog logger at the given level.
func initLogger(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})
	slog.SetDefault(slog.New(handler))
}
