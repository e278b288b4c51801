// Package cmd provides the CLI commands for mcpower-gate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcpower/mcpower-gate/internal/config"
)

var cfgFile string
var stateFilePath string

var rootCmd = &cobra.Command{
	Use:   "mcpower-gate",
	Short: "mcpower-gate - security wrapper for AI coding agents",
	Long: `mcpower-gate interposes between an AI coding agent and its tools: it
proxies MCP traffic over stdio with two-phase policy inspection, and it
answers IDE PreToolUse hook calls (Claude Code, Cursor) with the same
redaction, shell-command analysis, and policy-enforcement pipeline.

Quick start:
  1. Create a config file: mcpower-gate.yaml
  2. Run: mcpower-gate run

Configuration:
  Config is loaded from mcpower-gate.yaml in the current directory,
  $HOME/.mcpower-gate/, or /etc/mcpower-gate/.

  Environment variables can override config values with the MCPOWER_GATE_ prefix.
  Example: MCPOWER_GATE_SERVER_LOG_LEVEL=debug

Commands:
  run           Run the stdio MCP wrapper proxy for one upstream server
  claude-hook   Answer a Claude Code PreToolUse/SessionStart/UserPromptSubmit hook call
  cursor-hook   Answer a Cursor before*/after* hook call
  reset         Reset to clean state (remove local audit/identity files)
  hash-key      Generate SHA256 hash for an API key
  version       Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./mcpower-gate.yaml)")
	rootCmd.PersistentFlags().StringVar(&stateFilePath, "state", "", "path to state.json file (default: ./state.json)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
