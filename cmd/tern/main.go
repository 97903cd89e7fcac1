// Package main provides the tern CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mwielandt/tern/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	provider  string
	persona   string
	forceTool string
	dbPath    string
	verbose   bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "tern",
		Short: "Retrieval-augmented chat with tool-using LLM turns",
		Long: `A CLI for running agentic chat turns against LLM providers.

Each turn streams reasoning and answer tokens, can invoke tools
(document search, web search, URL fetching, image generation), and
resolves [N] citation markers against the documents the tools returned.`,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path for storage (default from TERN_DB_PATH or tern.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show reasoning tokens and debug logs")

	// Add commands
	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(sessionsCmd())
	rootCmd.AddCommand(memoryCmd())
	rootCmd.AddCommand(docsCmd())
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		Provider:  provider,
		Persona:   persona,
		ForceTool: forceTool,
		Verbose:   verbose,
	}
}

func chatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session with streaming turns.

Conversation history persists per session. Memories stored via
'tern memory add' are included in every system prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Chat(context.Background(), sessionID, dbPath, options())
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID for conversation persistence")
	cmd.Flags().StringVar(&persona, "persona", "", "Persona preset (default, researcher, concise, tutor)")
	cmd.Flags().StringVar(&forceTool, "force-tool", "", "Force this tool on the first cycle of each turn")

	return cmd
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Run a single question as one turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Ask(context.Background(), args[0], dbPath, options())
		},
	}

	cmd.Flags().StringVar(&persona, "persona", "", "Persona preset (default, researcher, concise, tutor)")
	cmd.Flags().StringVar(&forceTool, "force-tool", "", "Force this tool on the first cycle")

	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListSessions(context.Background(), storagePath())
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [session-id]",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.DeleteSession(context.Background(), args[0], storagePath())
		},
	}

	cmd.AddCommand(deleteCmd)
	return cmd
}

func memoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Manage memories included in system prompts",
	}

	addCmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a memory snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.AddMemory(context.Background(), args[0], storagePath())
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListMemories(context.Background(), storagePath())
		},
	}

	cmd.AddCommand(addCmd)
	cmd.AddCommand(listCmd)
	return cmd
}

func docsCmd() *cobra.Command {
	var title string
	var link string

	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage documents for the internal search tool",
	}

	addCmd := &cobra.Command{
		Use:   "add [file]",
		Short: "Index a local file for internal search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.AddDocument(context.Background(), args[0], title, link, storagePath())
		},
	}
	addCmd.Flags().StringVar(&title, "title", "", "Document title (defaults to file path)")
	addCmd.Flags().StringVar(&link, "link", "", "Document link shown in citations")

	cmd.AddCommand(addCmd)
	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cli.ListTools(verboseTools)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose", "V", false, "Show tool parameters")

	return cmd
}

func storagePath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("TERN_DB_PATH"); env != "" {
		return env
	}
	return "tern.db"
}
