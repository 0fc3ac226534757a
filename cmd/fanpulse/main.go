// ABOUTME: Entry point for the fanpulse server and its maintenance commands
// ABOUTME: Subcommands serve, init, seed, token, health and segments

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/fanpulse/internal/auth"
	"github.com/2389/fanpulse/internal/builtins"
	"github.com/2389/fanpulse/internal/config"
	"github.com/2389/fanpulse/internal/gateway"
	"github.com/2389/fanpulse/internal/insights"
	"github.com/2389/fanpulse/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  __                         _
 / _| __ _ _ __  _ __  _   _| |___  ___
| |_ / _' | '_ \| '_ \| | | | / __|/ _ \
|  _| (_| | | | | |_) | |_| | \__ \  __/
|_|  \__,_|_| |_| .__/ \__,_|_|___/\___|
                |_|
`

// defaultTokenTTL is the lifetime of tokens minted by "fanpulse token"
const defaultTokenTTL = 30 * 24 * time.Hour

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: fanpulse <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                        Start the server")
	fmt.Fprintln(w, "  init                         Create a new config file interactively")
	fmt.Fprintln(w, "  seed                         Load the demo dataset into an empty database")
	fmt.Fprintln(w, "  token --name NAME [--caps C] Mint a JWT for MCP or API clients")
	fmt.Fprintln(w, "  health                       Check server readiness")
	fmt.Fprintln(w, "  segments [--team TEAM]       Print the fan segment breakdown")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin)
	case "seed":
		err = runSeed(ctx)
	case "token":
		err = runToken(args, os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "segments":
		err = runSegments(ctx, args, os.Stdout)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, string, error) {
	configPath := config.Path()
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(config.DataPath()), "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if configPath == "" {
		yellow.Println("Config:    none found, using defaults (fanpulse init creates one)")
	} else {
		fmt.Printf("Config:    %s\n", configPath)
	}
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s (health)\n", cfg.Server.GRPCAddr)
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if !cfg.MCP.RequireAuth {
		yellow.Print("    ! ")
		fmt.Printf("MCP auth not required, anonymous callers get: %s\n", strings.Join(cfg.MCP.DefaultCapabilities, ", "))
	}
	fmt.Println()

	logger.Info("starting fanpulse",
		"version", version,
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
	)

	gw, err := gateway.New(cfg, logger, gateway.WithVersion(version))
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// runSeed loads the demo dataset into the configured database if it has no fans.
func runSeed(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path, store.WithDriver(cfg.Database.Driver))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	ds := store.DemoDataset()
	seeded, err := store.SeedIfEmpty(ctx, s, ds, time.Now())
	if err != nil {
		return err
	}

	if !seeded {
		color.Yellow("  Database %s already has fans, nothing loaded", cfg.Database.Path)
		return nil
	}
	color.Green("  ✓ Loaded %d fans, %d products, %d events and %d purchases into %s",
		len(ds.Fans), len(ds.Merchandise), len(ds.Events), len(ds.Purchases), cfg.Database.Path)
	return nil
}

// runToken mints a JWT signed with auth.jwt_secret.
// Usage: fanpulse token --name NAME [--caps fans,merch,marketing] [--ttl 720h]
func runToken(args []string, out io.Writer) error {
	fset := flag.NewFlagSet("token", flag.ContinueOnError)
	name := fset.String("name", "", "subject recorded in the token")
	caps := fset.String("caps", strings.Join(builtins.AllCapabilities, ","), "comma-separated capabilities")
	ttl := fset.Duration("ttl", defaultTokenTTL, "token lifetime, 0 for no expiry")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fset.Arg(0))
	}

	subject := strings.TrimSpace(*name)
	if subject == "" {
		return errors.New("--name flag is required")
	}
	if len(subject) > 100 {
		return errors.New("name exceeds maximum length of 100 characters")
	}
	if *ttl < 0 {
		return errors.New("--ttl must not be negative")
	}
	capList, err := parseCapabilities(*caps)
	if err != nil {
		return err
	}

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret not configured in %s (run fanpulse init)", displayPath(configPath))
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(subject, capList, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(out, token)
	return nil
}

// parseCapabilities splits a comma-separated list and rejects unknown capabilities.
func parseCapabilities(raw string) ([]string, error) {
	known := make(map[string]bool, len(builtins.AllCapabilities))
	for _, c := range builtins.AllCapabilities {
		known[c] = true
	}

	var caps []string
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !known[c] {
			return nil, fmt.Errorf("unknown capability %q (known: %s)", c, strings.Join(builtins.AllCapabilities, ", "))
		}
		caps = append(caps, c)
	}
	if len(caps) == 0 {
		return nil, errors.New("at least one capability is required")
	}
	return caps, nil
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

// runSegments prints the segment breakdown straight from the database.
func runSegments(ctx context.Context, args []string, out io.Writer) error {
	fset := flag.NewFlagSet("segments", flag.ContinueOnError)
	team := fset.String("team", "", "only fans whose favorite team contains this text")
	if err := fset.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := store.NewSQLiteStore(cfg.Database.Path, store.WithDriver(cfg.Database.Driver))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	svc := insights.NewService(s, insights.Options{LookbackDays: cfg.Insights.DefaultLookbackDays})
	groups, err := svc.Segments(ctx, *team)
	if err != nil {
		return err
	}
	return printSegments(out, groups)
}

func printSegments(out io.Writer, groups []insights.SegmentGroup) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEGMENT\tFANS\tMEMBERS")
	total := 0
	for _, g := range groups {
		names := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			names = append(names, m.Name)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\n", g.Segment, g.Count, strings.Join(names, ", "))
		total += g.Count
	}
	fmt.Fprintf(tw, "total\t%d\t\n", total)
	return tw.Flush()
}

func displayPath(p string) string {
	if p == "" {
		return "defaults (no config file)"
	}
	return p
}

// runInit asks a few questions and writes a complete config file.
func runInit(in io.Reader) error {
	reader := bufio.NewReader(in)

	fmt.Println("fanpulse configuration setup")
	fmt.Println("============================")
	fmt.Println()

	outputFile := prompt(reader, "Config file path", config.Path())
	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if !isYes(overwrite) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.Default(config.DataPath())

	fmt.Println("\n--- Server Configuration ---")
	cfg.Server.HTTPAddr = prompt(reader, "HTTP address", cfg.Server.HTTPAddr)
	cfg.Server.GRPCAddr = prompt(reader, "gRPC health address", cfg.Server.GRPCAddr)

	fmt.Println("\n--- Database Configuration ---")
	cfg.Database.Path = prompt(reader, "SQLite database path", cfg.Database.Path)
	cfg.Database.Seed = isYes(prompt(reader, "Load demo data into an empty database?", "yes"))

	fmt.Println("\n--- Tailscale Configuration ---")
	cfg.Tailscale.Enabled = isYes(prompt(reader, "Enable Tailscale?", "no"))
	if cfg.Tailscale.Enabled {
		cfg.Tailscale.Hostname = prompt(reader, "Tailscale hostname", cfg.Tailscale.Hostname)
		cfg.Tailscale.AuthKey = prompt(reader, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		cfg.Tailscale.Ephemeral = isYes(prompt(reader, "Ephemeral node?", "no"))
		cfg.Tailscale.Funnel = isYes(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
	}

	fmt.Println("\n--- Auth Configuration ---")
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	cfg.Auth.JWTSecret = base64.StdEncoding.EncodeToString(secretBytes)
	cfg.MCP.RequireAuth = isYes(prompt(reader, "Require a token for MCP clients?", "no"))

	fmt.Println("\n--- Logging Configuration ---")
	cfg.Logging.Level = prompt(reader, "Log level (debug/info/warn/error)", cfg.Logging.Level)
	cfg.Logging.Format = prompt(reader, "Log format (text/json)", cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := config.Marshal(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	content := append([]byte("# fanpulse configuration\n# Generated by fanpulse init\n\n"), data...)
	// The file holds the JWT secret
	if err := os.WriteFile(outputFile, content, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  fanpulse serve                 # start the server")
	fmt.Println("  fanpulse token --name laptop   # mint a client token")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func isYes(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "y"
}
