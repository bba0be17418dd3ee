// ABOUTME: Admin subcommands for pairchat: init, conversation create and token
// ABOUTME: Operate on the configured store and JWT secret without a running server

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/pairchat/internal/auth"
	"github.com/2389/pairchat/internal/config"
	"github.com/2389/pairchat/internal/gateway"
	"github.com/2389/pairchat/internal/store"
)

const defaultTokenTTL = 24 * time.Hour

// getDataPath returns the path to the pairchat data directory.
// Priority: XDG_DATA_HOME/pairchat > ~/.local/share/pairchat
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "pairchat")
}

// runInit writes a starter config with a random JWT secret.
// An existing config is never overwritten.
func runInit() error {
	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}

	dbPath := filepath.Join(getDataPath(), "pairchat.db")
	content := renderConfig(dbPath, base64.StdEncoding.EncodeToString(secretBytes))

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Printf("  Database: %s\n", dbPath)
	fmt.Println()
	color.New(color.FgYellow).Println("  Next:")
	fmt.Println("    pairchat conversation create alice bob")
	fmt.Println("    pairchat token alice")
	fmt.Println("    pairchat serve")
	return nil
}

func renderConfig(dbPath, secret string) string {
	return fmt.Sprintf(`# pairchat configuration
# Generated by pairchat init

server:
  http_addr: "127.0.0.1:8080"

database:
  driver: "sqlite"
  path: %q

auth:
  jwt_secret: %q

realtime:
  send_buffer: 128
  write_wait: "10s"
  ping_period: "30s"
  read_timeout: "60s"
  request_timeout: "5s"

redis:
  enabled: false
  url: "${PAIRCHAT_REDIS_URL}"

logging:
  level: "info"
  format: "text"
`, dbPath, secret)
}

// conversationArgs are the parsed arguments of "conversation create".
type conversationArgs struct {
	ID           string
	ParticipantA string
	ParticipantB string
}

// parseConversationArgs accepts "create <a> <b>" with an optional
// "--id ID" or "--id=ID" anywhere after create. A missing id gets a UUID.
func parseConversationArgs(args []string) (conversationArgs, error) {
	var out conversationArgs
	if len(args) == 0 || args[0] != "create" {
		return out, errors.New("usage: pairchat conversation create <user-a> <user-b> [--id ID]")
	}

	var positional []string
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		switch {
		case arg == "--id":
			if i+1 >= len(rest) {
				return out, errors.New("--id requires a value")
			}
			out.ID = rest[i+1]
			i++
		case strings.HasPrefix(arg, "--id="):
			out.ID = strings.TrimPrefix(arg, "--id=")
		case strings.HasPrefix(arg, "-"):
			return out, fmt.Errorf("unknown flag: %s", arg)
		default:
			positional = append(positional, arg)
		}
	}

	if len(positional) != 2 {
		return out, fmt.Errorf("expected two participants, got %d", len(positional))
	}
	out.ParticipantA = strings.TrimSpace(positional[0])
	out.ParticipantB = strings.TrimSpace(positional[1])

	if out.ID == "" {
		out.ID = uuid.New().String()
	}
	return out, nil
}

func runConversation(ctx context.Context, args []string) error {
	parsed, err := parseConversationArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := gateway.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	conv := &store.Conversation{
		ID:           parsed.ID,
		ParticipantA: parsed.ParticipantA,
		ParticipantB: parsed.ParticipantB,
	}
	if err := s.CreateConversation(ctx, conv); err != nil {
		if errors.Is(err, store.ErrDuplicateConversation) {
			return fmt.Errorf("conversation %s already exists", conv.ID)
		}
		return fmt.Errorf("creating conversation: %w", err)
	}

	color.New(color.FgGreen).Printf("  ✓ Created conversation %s\n", conv.ID)
	fmt.Printf("  Participants: %s, %s\n", conv.ParticipantA, conv.ParticipantB)
	return nil
}

// parseTokenArgs accepts "<user-id> [ttl]" where ttl is a Go duration.
func parseTokenArgs(args []string) (string, time.Duration, error) {
	if len(args) == 0 || len(args) > 2 {
		return "", 0, errors.New("usage: pairchat token <user-id> [ttl]")
	}

	userID := strings.TrimSpace(args[0])
	if userID == "" {
		return "", 0, errors.New("user id cannot be empty")
	}

	ttl := defaultTokenTTL
	if len(args) == 2 {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("parsing ttl: %w", err)
		}
		if d <= 0 {
			return "", 0, fmt.Errorf("ttl must be positive, got %s", args[1])
		}
		ttl = d
	}
	return userID, ttl, nil
}

func runToken(args []string) error {
	userID, ttl, err := parseTokenArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(userID, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	// Token alone on stdout so it can be captured by scripts
	fmt.Println(token)
	color.New(color.FgHiBlack).Fprintf(os.Stderr, "expires %s\n", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	return nil
}
