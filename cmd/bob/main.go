// Command bob is the interactive REPL front end for the agent.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/opsbuddy/bob/pkg/bob"
	"github.com/opsbuddy/bob/pkg/bob/memory"
)

const threadID = "interactive_session"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	cfg, err := bob.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	opts := []bob.Option{bob.WithLogger(logger)}
	if cfg.StorePath != "" {
		store, err := memory.NewSQLiteStore(cfg.StorePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open store:", err)
			os.Exit(1)
		}
		defer store.Close()
		opts = append(opts, bob.WithStore(store))
	}

	agent, err := bob.New(cfg, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "initialize agent:", err)
		os.Exit(1)
	}

	fmt.Printf("%s is ready. Type 'quit' or 'exit' to leave.\n\n", cfg.AgentName)

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			fmt.Println("Goodbye!")
			break
		}

		response := agent.Chat(ctx, input, threadID)
		fmt.Printf("%s: %s\n\n", cfg.AgentName, response)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "read input:", err)
		os.Exit(1)
	}
}
