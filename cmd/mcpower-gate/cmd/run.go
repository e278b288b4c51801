package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	stdiotransport "github.com/mcpower/mcpower-gate/internal/adapter/inbound/stdio"
	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/audit"
	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/identity"
	mcpclient "github.com/mcpower/mcpower-gate/internal/adapter/outbound/mcp"
	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/policyclient"
	"github.com/mcpower/mcpower-gate/internal/adapter/outbound/sqlite"
	"github.com/mcpower/mcpower-gate/internal/config"
	domainaudit "github.com/mcpower/mcpower-gate/internal/domain/audit"
	"github.com/mcpower/mcpower-gate/internal/domain/dialog"
	"github.com/mcpower/mcpower-gate/internal/domain/wrapper"
	"github.com/mcpower/mcpower-gate/internal/port/outbound"
	"github.com/mcpower/mcpower-gate/internal/service"
	"github.com/mcpower/mcpower-gate/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the MCP wrapper: proxy a single upstream server over stdio with policy inspection",
	Long: `Run starts the stdio wrapper pipeline: it speaks MCP JSON-RPC to whatever
client launched it (stdin/stdout) and proxies to exactly one upstream MCP
server, described by the "upstream" section of the config file.

Every tools/call, resources/read, prompts/get, and sampling/elicitation
request is inspected by the remote policy service before being forwarded,
and every response is scanned and inspected again before being returned
(§4.3's two-phase pipeline). Redaction (C1), shell-command parsing (C2),
decision enforcement (C4), and audit emission (C6) all run inline.

Examples:
  # Proxy a subprocess MCP server
  mcpower-gate run

  # With a config file elsewhere
  mcpower-gate --config ./mcpower-gate.yaml run`,
	RunE:         runWrapper,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runWrapper(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	providers, err := telemetry.NewProviders(traceWriter(cfg, logger))
	if err != nil {
		logger.Warn("failed to start telemetry providers, continuing without tracing", "error", err)
	}
	defer providers.Shutdown(context.Background())

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	stopMetrics := startMetricsListener(cfg.Server.MetricsAddr, registry, logger)
	defer stopMetrics()

	upstream, err := newUpstreamClient(cfg.Upstream)
	if err != nil {
		return fmt.Errorf("configure upstream: %w", err)
	}

	timeout, err := time.ParseDuration(cfg.PolicyService.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 15 * time.Second
	}
	initDebounce, err := time.ParseDuration(cfg.PolicyService.InitDebounce)
	if err != nil || initDebounce <= 0 {
		initDebounce = 60 * time.Second
	}
	policy := policyclient.New(cfg.PolicyService.BaseURL, cfg.PolicyService.APIKey, logger,
		policyclient.WithTimeout(timeout), policyclient.WithInitDebounce(initDebounce))

	identityStore := identity.NewStore(logger)

	auditLog, err := newAuditSink(cfg, logger)
	if err != nil {
		logger.Warn("failed to open audit sink, continuing without persisted audit", "error", err)
	}
	if auditLog != nil {
		defer func() {
			if cerr := auditLog.Close(); cerr != nil {
				logger.Warn("failed to close audit sink", "error", cerr)
			}
		}()
	}

	pipeline := wrapper.New(policy, identityStore, auditLog, dialog.NewTimeoutDialog(), wrapper.Config{
		Server:        wrapper.ServerIdentity{Name: upstreamName(cfg.Upstream), Transport: upstreamTransport(cfg.Upstream)},
		SessionID:     uuid.New().String(),
		Enforcement:   buildEnforceConfig(cfg),
		RootsProvider: wrapper.CWDRootsProvider(),
	}, logger).WithMetrics(metrics)

	proxyService := service.NewProxyService(upstream, pipeline, logger)
	transport := stdiotransport.NewStdioTransport(proxyService)
	defer func() { _ = transport.Close() }()

	logger.Info("mcpower-gate wrapper starting",
		"upstream", upstreamName(cfg.Upstream),
		"policy_service", cfg.PolicyService.BaseURL,
	)

	if err := transport.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("wrapper pipeline exited: %w", err)
	}
	return nil
}

// newUpstreamClient builds the single outbound.MCPClient this process
// proxies to, per cfg.Upstream's mutually-exclusive http/command fields.
func newUpstreamClient(cfg config.UpstreamConfig) (outbound.MCPClient, error) {
	switch {
	case cfg.HTTP != "" && cfg.Command != "":
		return nil, fmt.Errorf("upstream.http and upstream.command are mutually exclusive")
	case cfg.HTTP != "":
		timeout, err := time.ParseDuration(cfg.HTTPTimeout)
		if err != nil || timeout <= 0 {
			timeout = 30 * time.Second
		}
		return mcpclient.NewHTTPClient(cfg.HTTP, mcpclient.WithTimeout(timeout)), nil
	case cfg.Command != "":
		return mcpclient.NewStdioClient(cfg.Command, cfg.Args...), nil
	default:
		return nil, fmt.Errorf("upstream.http or upstream.command must be set")
	}
}

func upstreamName(cfg config.UpstreamConfig) string {
	if cfg.Command != "" {
		return cfg.Command
	}
	return cfg.HTTP
}

func upstreamTransport(cfg config.UpstreamConfig) string {
	if cfg.Command != "" {
		return "stdio"
	}
	return "http"
}

// newAuditSink builds the append-only audit store cfg.Audit names.
// "stdout" and "file://..." are the two forms config.Validate accepts;
// AuditFile carries rotation/retention knobs for the file form.
func newAuditSink(cfg *config.OSSConfig, logger *slog.Logger) (domainaudit.AuditStore, error) {
	var primary domainaudit.AuditStore
	if strings.HasPrefix(cfg.Audit.Output, "file://") {
		dir := strings.TrimPrefix(cfg.Audit.Output, "file://")
		store, err := audit.NewFileAuditStore(audit.AuditFileConfig{
			Dir:           dir,
			RetentionDays: cfg.AuditFile.RetentionDays,
			MaxFileSizeMB: cfg.AuditFile.MaxFileSizeMB,
			CacheSize:     cfg.AuditFile.CacheSize,
		}, logger)
		if err != nil {
			return nil, err
		}
		primary = store
	} else {
		primary = audit.NewStdoutStore(os.Stderr)
	}

	if cfg.Audit.SQLiteMirror == "" {
		return primary, nil
	}
	mirror, err := sqlite.Open(cfg.Audit.SQLiteMirror)
	if err != nil {
		logger.Warn("failed to open sqlite audit mirror, continuing with primary sink only",
			"path", cfg.Audit.SQLiteMirror, "error", err)
		return primary, nil
	}
	return audit.NewTeeStore(primary, mirror), nil
}

// traceWriter picks where span/metric export text goes: stderr alongside
// log lines in dev_mode, discarded otherwise (a production deployment
// points this at its own collector instead; the stdout exporters here are
// the teacher's never-wired go.mod entries, given a dev-visible home).
func traceWriter(cfg *config.OSSConfig, logger *slog.Logger) *os.File {
	if cfg.DevMode {
		return os.Stderr
	}
	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return os.Stderr
	}
	return devNull
}

// startMetricsListener starts a localhost /metrics handler when addr is
// non-empty, returning a stop func that is always safe to defer.
func startMetricsListener(addr string, registry *prometheus.Registry, logger *slog.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics listener stopped", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
