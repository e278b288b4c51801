package config

import "testing"

func TestSetDefaults(t *testing.T) {
	var c OSSConfig
	c.SetDefaults()

	if c.Server.LogLevel != "info" {
		t.Errorf("Server.LogLevel = %q, want %q", c.Server.LogLevel, "info")
	}
	if c.Upstream.HTTPTimeout != "30s" {
		t.Errorf("Upstream.HTTPTimeout = %q, want %q", c.Upstream.HTTPTimeout, "30s")
	}
	if c.PolicyService.Timeout != "15s" {
		t.Errorf("PolicyService.Timeout = %q, want %q", c.PolicyService.Timeout, "15s")
	}
	if c.PolicyService.InitDebounce != "30s" {
		t.Errorf("PolicyService.InitDebounce = %q, want %q", c.PolicyService.InitDebounce, "30s")
	}
	if c.Enforcement.MinBlockSeverity != "medium" {
		t.Errorf("Enforcement.MinBlockSeverity = %q, want %q", c.Enforcement.MinBlockSeverity, "medium")
	}
	if c.Enforcement.ConfirmationTimeout != "60s" {
		t.Errorf("Enforcement.ConfirmationTimeout = %q, want %q", c.Enforcement.ConfirmationTimeout, "60s")
	}
	if c.Audit.Output != "stdout" {
		t.Errorf("Audit.Output = %q, want %q", c.Audit.Output, "stdout")
	}
	if c.Audit.ChannelSize != 1000 {
		t.Errorf("Audit.ChannelSize = %d, want 1000", c.Audit.ChannelSize)
	}
	if c.Audit.BatchSize != 100 {
		t.Errorf("Audit.BatchSize = %d, want 100", c.Audit.BatchSize)
	}
	if c.Audit.WarningThreshold != 80 {
		t.Errorf("Audit.WarningThreshold = %d, want 80", c.Audit.WarningThreshold)
	}
	if c.Identity.Dir == "" {
		t.Error("Identity.Dir should default to $HOME/.mcpower")
	}
}

func TestSetDefaults_DoesNotOverrideExplicitValues(t *testing.T) {
	c := OSSConfig{
		Server: ServerConfig{LogLevel: "debug"},
		Audit:  AuditConfig{Output: "file:///tmp/audit.log", ChannelSize: 42},
	}
	c.SetDefaults()

	if c.Server.LogLevel != "debug" {
		t.Errorf("Server.LogLevel was overridden: got %q", c.Server.LogLevel)
	}
	if c.Audit.Output != "file:///tmp/audit.log" {
		t.Errorf("Audit.Output was overridden: got %q", c.Audit.Output)
	}
	if c.Audit.ChannelSize != 42 {
		t.Errorf("Audit.ChannelSize was overridden: got %d", c.Audit.ChannelSize)
	}
}

func TestSetDevDefaults(t *testing.T) {
	c := OSSConfig{DevMode: true}
	c.SetDevDefaults()

	if c.PolicyService.BaseURL == "" {
		t.Error("expected a dev PolicyService.BaseURL")
	}
	if c.Audit.Output != "stdout" {
		t.Errorf("Audit.Output = %q, want %q", c.Audit.Output, "stdout")
	}
}

func TestSetDevDefaults_NoopWhenNotDevMode(t *testing.T) {
	c := OSSConfig{}
	c.SetDevDefaults()

	if c.PolicyService.BaseURL != "" {
		t.Errorf("expected no dev defaults applied, got BaseURL=%q", c.PolicyService.BaseURL)
	}
}
