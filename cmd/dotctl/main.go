// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command dotctl is the terminal client for the Dot assistant server.
//
// Usage:
//
//	dotctl ask "What's due for Sky this week?"
//	dotctl chat
//	dotctl chat --session my-standup
//	dotctl clear my-standup
//	dotctl tools
//
// The server address comes from --server, the DOT_SERVER_URL environment
// variable, or defaults to http://localhost:8080. Pass --roster CODE=Name
// (repeatable) to teach Dot extra client codes for the session, and --scope
// to lock every question to one client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Flag values shared by the subcommands.
var (
	serverFlag  string
	scopeFlag   string
	rosterFlags []string
	sessionFlag string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dotctl",
		Short: "Talk to the Dot assistant from the terminal",
		Long: `dotctl asks Dot questions about Hunch's jobs, people, and budgets.

Start the server with 'dot', then:

  dotctl ask "What's due for Sky this week?"
  dotctl chat
  dotctl tools`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Dot server URL (default $DOT_SERVER_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&scopeFlag, "scope", "", "lock every question to one client code")
	rootCmd.PersistentFlags().StringArrayVar(&rosterFlags, "roster", nil, "client roster entry as CODE=Name, repeatable")

	askCmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand,
	}
	askCmd.Flags().StringVar(&sessionFlag, "session", "", "session ID to continue (default: fresh one-off session)")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Run:   runChatCommand,
	}
	chatCmd.Flags().StringVar(&sessionFlag, "session", "", "session ID to resume")

	clearCmd := &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Clear a conversation's history",
		Args:  cobra.ExactArgs(1),
		Run:   runClearCommand,
	}

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List the record tools the assistant can call",
		Run:   runToolsCommand,
	}

	rootCmd.AddCommand(askCmd, chatCmd, clearCmd, toolsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
