// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func runChatCommand(_ *cobra.Command, args []string) {
	if len(args) > 0 {
		fmt.Printf("Warning: Unexpected arguments ignored: %v\n", args)
		fmt.Println("Use 'dotctl chat --help' to see available flags.")
	}

	roster, err := parseRoster(rosterFlags)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	sessionID := sessionFlag
	resumed := sessionID != ""
	if sessionID == "" {
		sessionID = "chat-" + uuid.NewString()
	}

	client := newAssistantClient(getServerBaseURL(), scopeFlag)

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	interactive := isatty.IsTerminal(os.Stdout.Fd())
	if interactive {
		printChatBanner(sessionID, resumed)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for ctx.Err() == nil {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "exit", "quit", "q":
			fmt.Println("Goodbye.")
			return
		case "/clear":
			if clearErr := client.clearSession(ctx, sessionID); clearErr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", clearErr)
				continue
			}
			fmt.Println("Conversation cleared. Fresh start.")
			continue
		}

		done := make(chan bool)
		if interactive {
			go showSpinner("Thinking", done)
		}
		reply, queryErr := client.submitQuery(ctx, line, sessionID, roster)
		if interactive {
			done <- true
			fmt.Print("\r\033[K")
		}
		if queryErr != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", queryErr)
			continue
		}

		fmt.Print("dot> ")
		renderReply(os.Stdout, reply)
		fmt.Println()
	}
	fmt.Println("\nGoodbye.")
}

func printChatBanner(sessionID string, resumed bool) {
	fmt.Println("Dot · Hunch assistant")
	if resumed {
		fmt.Printf("Resuming session %s\n", sessionID)
	} else {
		fmt.Printf("Session %s\n", sessionID)
	}
	fmt.Println(`Type a question, "/clear" to wipe the conversation, "exit" to leave.`)
	fmt.Println()
}
