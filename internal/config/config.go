// Package config provides configuration types for mcpower-gate.
//
// The wrapper is a single-upstream, single-process tool: one config file
// describes the upstream MCP server to proxy, the remote policy service to
// consult, and where audit/identity state lives. It intentionally excludes
// the multi-tenant gateway concerns a larger deployment would need:
//
//   - NO admin web interface or HTTP management API
//   - NO local API-key/identity authentication (hook subprocesses are
//     trusted by construction; the proxy speaks to exactly one upstream)
//   - NO rate limiting (single developer machine, not a shared gateway)
//   - NO HTTP/TLS-inspection gateway (MCP-over-stdio and IDE hooks only)
//
// Policy decisions are never made from locally configured rules; they come
// from the remote policy service (see internal/adapter/outbound/policyclient).
package config

import (
	"os"
)

// OSSConfig is the top-level configuration for mcpower-gate.
type OSSConfig struct {
	// Server configures ambient concerns for the long-lived stdio wrapper
	// process (logging, optional metrics listener).
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Upstream configures the MCP server to proxy to.
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`

	// PolicyService configures the remote policy client (C3).
	PolicyService PolicyServiceConfig `yaml:"policy_service" mapstructure:"policy_service"`

	// AuditFile configures the file-based audit persistence (C6).
	AuditFile AuditFileConfig `yaml:"audit_file" mapstructure:"audit_file"`

	// Audit configures where audit logs are written.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Identity configures the app-uid store (C9).
	Identity IdentityStoreConfig `yaml:"identity" mapstructure:"identity"`

	// Enforcement configures the decision-enforcement knobs (C4).
	Enforcement EnforcementConfig `yaml:"enforcement" mapstructure:"enforcement"`

	// DevMode enables development features (verbose logging, etc).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures ambient logging/metrics for the wrapper process.
type ServerConfig struct {
	// LogLevel sets the minimum log level.
	// Valid values: "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// MetricsAddr, if non-empty, starts a localhost-only /metrics listener
	// exposing the prometheus registry (e.g., "127.0.0.1:9090"). Empty
	// disables the listener entirely.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// UpstreamConfig configures the single upstream MCP server.
// Exactly one of HTTP or Command must be specified (mutually exclusive).
type UpstreamConfig struct {
	// HTTP is the URL of a remote MCP server (e.g., "http://localhost:3000/mcp").
	HTTP string `yaml:"http" mapstructure:"http" validate:"omitempty,url"`

	// Command is the path to an MCP server executable to spawn as a subprocess.
	Command string `yaml:"command" mapstructure:"command"`

	// Args are the arguments to pass to the subprocess command.
	Args []string `yaml:"args" mapstructure:"args"`

	// HTTPTimeout is the timeout for HTTP requests to upstream (e.g., "30s", "1m").
	HTTPTimeout string `yaml:"http_timeout" mapstructure:"http_timeout" validate:"omitempty"`
}

// PolicyServiceConfig configures the outbound HTTP client to the remote
// policy service consulted by every inspected operation.
type PolicyServiceConfig struct {
	// BaseURL is the policy service's base URL, e.g. "https://api.mcpower.dev".
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// APIKey authenticates this wrapper instance to the policy service.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Timeout bounds every /inspect/* call (e.g., "15s"). Transport errors
	// or timeouts synthesize a block verdict rather than panicking or
	// retrying indefinitely.
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty"`

	// InitDebounce bounds how often /init is re-sent for an unchanged tool
	// list (e.g., "30s").
	InitDebounce string `yaml:"init_debounce" mapstructure:"init_debounce" validate:"omitempty"`
}

// IdentityStoreConfig configures where the per-workspace app_uid file lives.
type IdentityStoreConfig struct {
	// Dir overrides the directory searched for/created to hold app_uid.
	// Empty means "<workspace root>/.mcpower", falling back to
	// "~/.mcpower" when no workspace root is known.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// EnforcementConfig configures the decision-enforcement state machine (C4).
type EnforcementConfig struct {
	// MinBlockSeverity is the minimum verdict severity that results in a
	// block/confirmation instead of a silent allow. One of
	// "low", "medium", "high", "critical". Defaults to "medium".
	MinBlockSeverity string `yaml:"min_block_severity" mapstructure:"min_block_severity" validate:"omitempty,oneof=low medium high critical"`

	// AllowBlockOverride, when true, downgrades a "block" verdict to an
	// interactive confirmation instead of an unconditional deny. A pointer
	// so "unset" (default true, §6.5) is distinguishable from an explicit
	// "false" in the config file or environment.
	AllowBlockOverride *bool `yaml:"allow_block_override" mapstructure:"allow_block_override"`

	// ConfirmationTimeout bounds how long a confirmation dialog waits for
	// a user decision before defaulting to BLOCK (e.g., "60s").
	ConfirmationTimeout string `yaml:"confirmation_timeout" mapstructure:"confirmation_timeout" validate:"omitempty"`
}

// AuditConfig configures audit log output.
type AuditConfig struct {
	// Output specifies where audit logs are written.
	// Valid values: "stdout" or "file:///absolute/path/to/audit.log"
	Output string `yaml:"output" mapstructure:"output" validate:"required,audit_output"`

	// ChannelSize is the buffer size for the audit channel.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is the number of records to batch before writing.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is how often to flush pending records (e.g., "1s", "500ms").
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty"`

	// SendTimeout is how long to block when channel is full (e.g., "100ms", "0").
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty"`

	// WarningThreshold is the percentage (0-100) at which to log warnings.
	WarningThreshold int `yaml:"warning_threshold" mapstructure:"warning_threshold" validate:"omitempty,min=0,max=100"`

	// BufferSize is the number of recent audit records kept in memory.
	BufferSize int `yaml:"buffer_size" mapstructure:"buffer_size" validate:"omitempty,min=1"`

	// SQLiteMirror, when non-empty, is a path to a modernc.org/sqlite
	// database that mirrors every audit event for querying, alongside
	// (never instead of) the append-only file/stdout sink.
	SQLiteMirror string `yaml:"sqlite_mirror" mapstructure:"sqlite_mirror"`
}

// AuditFileConfig configures the file-based audit persistence.
type AuditFileConfig struct {
	// Dir is the directory where audit files are stored.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// RetentionDays is the number of days to keep audit files. Defaults to 7.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days"`
	// MaxFileSizeMB is the maximum size per audit file in megabytes before rotation.
	MaxFileSizeMB int `yaml:"max_file_size_mb" mapstructure:"max_file_size_mb"`
	// CacheSize is the number of recent audit records to keep in memory.
	CacheSize int `yaml:"cache_size" mapstructure:"cache_size"`
}

// SetDevDefaults applies permissive defaults for development mode so the
// wrapper can run against a local policy-service stub with minimal config.
func (c *OSSConfig) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.PolicyService.BaseURL == "" {
		c.PolicyService.BaseURL = "http://127.0.0.1:8787"
	}
	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
}

// SetDefaults applies sensible default values to the configuration.
func (c *OSSConfig) SetDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Upstream.HTTPTimeout == "" {
		c.Upstream.HTTPTimeout = "30s"
	}

	if c.PolicyService.Timeout == "" {
		c.PolicyService.Timeout = "15s"
	}
	if c.PolicyService.InitDebounce == "" {
		c.PolicyService.InitDebounce = "60s"
	}

	if c.Enforcement.MinBlockSeverity == "" {
		c.Enforcement.MinBlockSeverity = "low"
	}
	if c.Enforcement.ConfirmationTimeout == "" {
		c.Enforcement.ConfirmationTimeout = "60s"
	}
	if c.Enforcement.AllowBlockOverride == nil {
		allowOverride := true
		c.Enforcement.AllowBlockOverride = &allowOverride
	}
	if c.Audit.Output == "" {
		c.Audit.Output = "stdout"
	}
	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1000
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval == "" {
		c.Audit.FlushInterval = "1s"
	}
	if c.Audit.SendTimeout == "" {
		c.Audit.SendTimeout = "100ms"
	}
	if c.Audit.WarningThreshold == 0 {
		c.Audit.WarningThreshold = 80
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = 1000
	}

	if c.Identity.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Identity.Dir = home + "/.mcpower"
		}
	}
}
