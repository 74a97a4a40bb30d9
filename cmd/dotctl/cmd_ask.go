// Copyright (C) 2026 Hunch Creative Ltd (dev@hunchcreative.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runAskCommand(_ *cobra.Command, args []string) {
	question := strings.Join(args, " ")
	roster, err := parseRoster(rosterFlags)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	// One-off sessions get a throwaway ID so context never bleeds between
	// separate ask invocations.
	sessionID := sessionFlag
	if sessionID == "" {
		sessionID = "ctl-" + uuid.NewString()
	}

	client := newAssistantClient(getServerBaseURL(), scopeFlag)

	done := make(chan bool)
	go showSpinner("Thinking", done)
	reply, err := client.submitQuery(context.Background(), question, sessionID, roster)
	done <- true
	fmt.Print("\r\033[K")

	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	renderReply(os.Stdout, reply)
}

func runClearCommand(_ *cobra.Command, args []string) {
	client := newAssistantClient(getServerBaseURL(), scopeFlag)
	if err := client.clearSession(context.Background(), args[0]); err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println("Conversation cleared.")
}

func runToolsCommand(_ *cobra.Command, _ []string) {
	client := newAssistantClient(getServerBaseURL(), scopeFlag)
	tools, err := client.listTools(context.Background())
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	fmt.Println("Record tools available to the assistant:")
	for _, name := range tools {
		fmt.Printf("  - %s\n", name)
	}
}
