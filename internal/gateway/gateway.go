// ABOUTME: Gateway orchestrator that coordinates the HTTP and gRPC health servers
// ABOUTME: Wires store, insights service, tool packs, MCP server, metrics and listeners

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/keepalive"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/fanpulse/internal/auth"
	"github.com/2389/fanpulse/internal/builtins"
	"github.com/2389/fanpulse/internal/config"
	"github.com/2389/fanpulse/internal/dedupe"
	"github.com/2389/fanpulse/internal/insights"
	"github.com/2389/fanpulse/internal/mcp"
	"github.com/2389/fanpulse/internal/metrics"
	"github.com/2389/fanpulse/internal/middleware"
	"github.com/2389/fanpulse/internal/packs"
	"github.com/2389/fanpulse/internal/store"
)

// DefaultIdempotencyTTL is how long engagement idempotency keys are remembered
const DefaultIdempotencyTTL = 10 * time.Minute

// idempotencyCacheSize bounds the number of remembered idempotency keys
const idempotencyCacheSize = 100_000

// Gateway orchestrates the fanpulse server components.
// It serves the MCP endpoint, REST API, health and metrics over HTTP and the
// standard gRPC health service.
type Gateway struct {
	config  *config.Config
	store   store.FanStore
	logger  *slog.Logger
	now     func() time.Time
	version string

	insights    *insights.Service
	idempotency *dedupe.Cache

	packRegistry *packs.Registry
	packRouter   *packs.Router

	// mcpTokens maps pre-shared MCP tokens to capabilities
	mcpTokens *mcp.TokenStore
	mcpServer *mcp.Server

	// mcpEndpoint is the advertised MCP URL (e.g., "http://localhost:8080/mcp")
	mcpEndpoint string

	limiter      *middleware.RateLimiter
	metrics      *metrics.Collector
	promRegistry *prometheus.Registry

	grpcServer   *grpc.Server
	healthServer *health.Server
	httpServer   *http.Server
	tsnetServer  *tsnet.Server
}

// Option customizes a Gateway before its components are built.
type Option func(*Gateway)

// WithStore uses st instead of opening the configured database.
// The Gateway takes ownership and closes st on Shutdown.
func WithStore(st store.FanStore) Option {
	return func(g *Gateway) { g.store = st }
}

// WithClock replaces time.Now for seeding and date defaults.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(version string) Option {
	return func(g *Gateway) { g.version = version }
}

// initStore opens the configured SQLite database.
// FANPULSE_DB_PATH overrides database.path.
func initStore(cfg *config.Config, logger *slog.Logger) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("FANPULSE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath, store.WithDriver(cfg.Database.Driver), store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// registerBuiltinPacks registers all builtin packs with the registry.
func registerBuiltinPacks(registry *packs.Registry, svc *insights.Service) error {
	for _, pack := range builtins.All(svc) {
		if err := registry.RegisterBuiltinPack(pack); err != nil {
			return fmt.Errorf("registering %s pack: %w", pack.ID, err)
		}
	}
	return nil
}

// determineMCPEndpoint resolves the advertised MCP endpoint URL.
// Priority: FANPULSE_MCP_ENDPOINT env > derived from config.
func determineMCPEndpoint(cfg *config.Config) string {
	if envEndpoint := os.Getenv("FANPULSE_MCP_ENDPOINT"); envEndpoint != "" {
		return envEndpoint
	}
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS || cfg.Tailscale.Funnel {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname + "/mcp"
	}
	return "http://" + cfg.Server.HTTPAddr + "/mcp"
}

// createGRPCServer creates the gRPC server carrying only the health service.
func createGRPCServer() (*grpc.Server, *health.Server) {
	server := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	healthServer := health.NewServer()
	registerHealthService(server, healthServer)
	return server, healthServer
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gw := &Gateway{
		config: cfg,
		logger: logger.With("component", "gateway"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(gw)
	}

	if gw.store == nil {
		s, err := initStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		gw.store = s
	}

	if err := gw.build(logger); err != nil {
		gw.closeComponents()
		_ = gw.store.Close()
		return nil, err
	}
	return gw, nil
}

// build wires every component on top of the open store.
func (g *Gateway) build(logger *slog.Logger) error {
	cfg := g.config

	if cfg.Database.Seed {
		seeded, err := store.SeedIfEmpty(context.Background(), g.store, store.DemoDataset(), g.now())
		if err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
		if seeded {
			g.logger.Info("demo dataset loaded into empty database")
		}
	}

	g.promRegistry = prometheus.NewRegistry()
	g.promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	g.metrics = metrics.NewCollector(g.promRegistry)

	idemTTL := cfg.MCP.IdempotencyTTL
	if idemTTL <= 0 {
		idemTTL = DefaultIdempotencyTTL
	}
	g.idempotency = dedupe.New(idemTTL, idempotencyCacheSize)

	g.insights = insights.NewService(g.store, insights.Options{
		LookbackDays:       cfg.Insights.DefaultLookbackDays,
		MaxRecommendations: cfg.Insights.DefaultMaxRecommendations,
		PromotionDays:      cfg.Insights.PromotionDays,
		Idempotency:        g.idempotency,
		Events:             g.metrics,
		Now:                g.now,
		Logger:             logger,
	})

	g.packRegistry = packs.NewRegistry(logger)
	g.packRouter = packs.NewRouter(packs.RouterConfig{
		Registry: g.packRegistry,
		Logger:   logger,
		Timeout:  cfg.MCP.ToolTimeout,
		Recorder: g.metrics,
	})
	if err := registerBuiltinPacks(g.packRegistry, g.insights); err != nil {
		return err
	}

	// A nil *JWTVerifier must not reach the interface-typed fields below
	var verifier auth.TokenVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	}

	g.mcpTokens = mcp.NewTokenStore()
	for _, tok := range cfg.MCP.Tokens {
		g.mcpTokens.Add(tok.Token, tok.Name, tok.Capabilities)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:      g.packRegistry,
		Router:        g.packRouter,
		Logger:        logger,
		TokenVerifier: verifier,
		TokenStore:    g.mcpTokens,
		RequireAuth:   cfg.MCP.RequireAuth,
		DefaultCaps:   cfg.MCP.DefaultCapabilities,
		SessionTTL:    cfg.MCP.SessionTTL,
		Version:       g.version,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	g.mcpServer = mcpServer
	g.mcpEndpoint = determineMCPEndpoint(cfg)

	if cfg.MCP.RateLimit > 0 {
		g.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:   rate.Limit(cfg.MCP.RateLimit),
			Burst:  cfg.MCP.RateBurst,
			Logger: logger,
		})
	}

	g.grpcServer, g.healthServer = createGRPCServer()

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           g.routes(verifier),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.logger.Info("gateway initialized",
		"tools", len(g.packRegistry.GetToolsForCapabilities(builtins.AllCapabilities)),
		"mcp_endpoint", g.mcpEndpoint,
		"mcp_tokens", g.mcpTokens.TokenCount(),
	)
	return nil
}

// routes builds the HTTP handler tree.
func (g *Gateway) routes(verifier auth.TokenVerifier) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(g.logger, g.metrics))
	r.Use(middleware.Recovery(g.logger))

	// Health endpoints - no auth required
	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)

	if g.config.Metrics.Enabled {
		r.Method(http.MethodGet, g.config.Metrics.Path, metrics.Handler(g.promRegistry))
	}

	r.Route("/api", func(r chi.Router) {
		g.registerAPIRoutes(r, verifier)
	})

	r.Group(func(r chi.Router) {
		if g.limiter != nil {
			r.Use(g.limiter.Middleware)
		}
		g.mcpServer.RegisterRoutes(r)
	})

	return r
}

// Handler returns the HTTP handler serving every endpoint.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Insights returns the insights service backing the tools and API.
func (g *Gateway) Insights() *insights.Service {
	return g.insights
}

// MCPEndpoint returns the advertised MCP endpoint URL.
func (g *Gateway) MCPEndpoint() string {
	return g.mcpEndpoint
}

// setupTCPListeners creates standard TCP listeners for gRPC and HTTP.
// The gRPC listener is nil when server.grpc_addr is empty.
func (g *Gateway) setupTCPListeners() (grpcLn, httpLn net.Listener, err error) {
	g.logger.Info("starting gateway",
		"grpc_addr", g.config.Server.GRPCAddr,
		"http_addr", g.config.Server.HTTPAddr,
	)

	if g.config.Server.GRPCAddr != "" {
		grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		if grpcLn != nil {
			_ = grpcLn.Close()
		}
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	return grpcLn, httpLn, nil
}

// warnIgnoredAddresses logs a warning if server addresses are configured but Tailscale is enabled.
func (g *Gateway) warnIgnoredAddresses() {
	if g.config.Server.GRPCAddr != "" || g.config.Server.HTTPAddr != "" {
		g.logger.Warn("server.grpc_addr and server.http_addr are ignored when tailscale is enabled",
			"grpc_addr", g.config.Server.GRPCAddr,
			"http_addr", g.config.Server.HTTPAddr,
		)
	}
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	if g.config.Tailscale.Enabled {
		g.warnIgnoredAddresses()
		return g.setupTailscaleListeners(ctx)
	}
	return g.setupTCPListeners()
}

// startServers starts gRPC and HTTP servers in goroutines, returning error channel.
func (g *Gateway) startServers(grpcLn, httpLn net.Listener) chan error {
	errCh := make(chan error, 2)

	if grpcLn != nil {
		go func() {
			g.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String(), "mcp_endpoint", g.mcpEndpoint)
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the gateway servers and blocks until the context is canceled.
// Returns nil on graceful shutdown (context canceled), or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	grpcListener, httpListener, err := g.setupListeners(ctx)
	if err != nil {
		return err
	}

	g.setServing(true)
	errCh := g.startServers(grpcListener, httpListener)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	timeout := g.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "fanpulse", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListeners creates a tsnet server and returns listeners for gRPC and HTTP.
func (g *Gateway) setupTailscaleListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)
	g.updateMCPEndpointFromStatus(status, tsCfg)

	grpcLn, err = g.tsnetServer.Listen("tcp", ":50051")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, nil, fmt.Errorf("listening on tailscale gRPC port: %w", err)
	}

	httpLn, err = g.createTailscaleHTTPListener(tsCfg, grpcLn)
	if err != nil {
		return nil, nil, err
	}
	return grpcLn, httpLn, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// updateMCPEndpointFromStatus advertises the MCP endpoint under the node's tailnet DNS name.
func (g *Gateway) updateMCPEndpointFromStatus(status *ipnstate.Status, tsCfg config.TailscaleConfig) {
	if os.Getenv("FANPULSE_MCP_ENDPOINT") != "" || status.Self == nil || status.Self.DNSName == "" {
		return
	}
	scheme := "http"
	if tsCfg.HTTPS || tsCfg.Funnel {
		scheme = "https"
	}
	cleanDNS := strings.TrimSuffix(status.Self.DNSName, ".")
	newEndpoint := scheme + "://" + cleanDNS + "/mcp"
	if newEndpoint != g.mcpEndpoint {
		g.logger.Info("updated MCP endpoint to use Tailscale DNS name", "old", g.mcpEndpoint, "new", newEndpoint)
		g.mcpEndpoint = newEndpoint
	}
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig, grpcLn net.Listener) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = grpcLn.Close()
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener(grpcLn)
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = grpcLn.Close()
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener(grpcLn net.Listener) (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = grpcLn.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = grpcLn.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents stops background workers of components that may be nil.
func (g *Gateway) closeComponents() {
	if g.limiter != nil {
		g.limiter.Stop()
	}
	if g.packRouter != nil {
		g.packRouter.Close()
	}
	if g.packRegistry != nil {
		g.packRegistry.Close()
	}
	if g.idempotency != nil {
		g.idempotency.Close()
	}
}

// Shutdown gracefully stops all gateway servers and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")
	g.setServing(false)

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.shutdownGRPCServer(ctx)

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	g.closeComponents()
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
