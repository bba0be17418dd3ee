// ABOUTME: Entry point for the pairchat server and its admin commands
// ABOUTME: Serves the realtime gateway, creates conversations and issues tokens

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/pairchat/internal/config"
	"github.com/2389/pairchat/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
             _            _           _
 _ __   __ _(_)_ __   ___| |__   __ _| |_
| '_ \ / _' | | '__| / __| '_ \ / _' | __|
| |_) | (_| | | |   | (__| | | | (_| | |_
| .__/ \__,_|_|_|    \___|_| |_|\__,_|\__|
|_|
`

// getConfigPath returns the path to the pairchat config file.
// Priority: PAIRCHAT_CONFIG env var > XDG_CONFIG_HOME/pairchat/pairchat.yaml > ~/.config/pairchat/pairchat.yaml
func getConfigPath() string {
	if envPath := os.Getenv("PAIRCHAT_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "pairchat.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "pairchat", "pairchat.yaml")
}

func usage() {
	fmt.Println("Usage: pairchat <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                                 Start the chat server")
	fmt.Println("  init                                  Write a config file with a fresh JWT secret")
	fmt.Println("  conversation create <a> <b> [--id ID] Create a conversation between two users")
	fmt.Println("  token <user-id> [ttl]                 Issue an access token (default ttl 24h)")
	fmt.Println("  health                                Check server health")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// .env values are visible to ${VAR} expansion in the config file
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "conversation":
		err = runConversation(ctx, os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s", cfg.Database.Driver)
	if cfg.Database.Driver == config.DriverSQLite {
		gray.Printf(" (%s)", cfg.Database.Path)
	}
	fmt.Println()
	if cfg.Redis.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Relay:     ")
		yellow.Println(cfg.Redis.ChannelPrefix + "*")
	}
	fmt.Println()

	logger.Info("starting pairchat",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"driver", cfg.Database.Driver,
		"relay", cfg.Redis.Enabled,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	var health gateway.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d (store %s)", resp.StatusCode, health.Store)
	}

	fmt.Printf("healthy: %d connections, %d active conversations\n",
		health.Connections, health.Registry.Conversations)
	return nil
}
