package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	mcpadapter "github.com/kirillkom/knowledge-assistant/internal/adapters/mcp"
	"github.com/kirillkom/knowledge-assistant/internal/bootstrap"
	"github.com/kirillkom/knowledge-assistant/internal/config"
	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-assistant/internal/observability/logging"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "kbctl",
		Short:        "Knowledge assistant command line",
		Long:         `Ingest documents and ask questions against the knowledge assistant. Settings come from the same environment variables as the API.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newIngestCommand(),
		newPublishCommand(),
		newAskCommand(),
		newMCPCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("kbctl version %s\n", version)
		},
	}
}

func newIngestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest FILE...",
		Short: "Ingest files into the local knowledge base",
		Long:  `Ingest files directly, without the API. The index snapshot is persisted through SNAPSHOT_STORE so the API sees the documents on its next start.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args)
			if err != nil {
				return err
			}
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.IngestUC.Ingest(cmd.Context(), docs)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func newPublishCommand() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "publish FILE...",
		Short: "Queue files for ingestion by a running API",
		Long:  `Queue files on the NATS ingest subject. With --wait each file is sent as a request and the consumer's ingest result is printed.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := readDocuments(args)
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := cliLogger(cmd, cfg)
			queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
				ResilienceExecutor: bootstrap.NewExecutor(cfg, logger),
				Logger:             logger,
			})
			if err != nil {
				return fmt.Errorf("connect ingest queue: %w", err)
			}
			defer queue.Close()

			for _, doc := range docs {
				if !wait {
					if err := queue.PublishIngest(cmd.Context(), doc); err != nil {
						return fmt.Errorf("publish %s: %w", doc.Filename, err)
					}
					cmd.Printf("queued %s\n", doc.Filename)
					continue
				}
				result, err := queue.RequestIngest(cmd.Context(), doc)
				if err != nil {
					return fmt.Errorf("publish %s: %w", doc.Filename, err)
				}
				if err := printJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the consumer to report the ingest result")
	return cmd
}

func newAskCommand() *cobra.Command {
	var kbOnly bool
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question through the fallback chain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			query := strings.Join(args, " ")
			if kbOnly {
				answer, err := app.QueryUC.Query(cmd.Context(), query)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), answer)
			}
			decision, err := app.RouterUC.Route(cmd.Context(), query)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), decision)
		},
	}
	cmd.Flags().BoolVar(&kbOnly, "kb-only", false, "answer from the knowledge base only")
	return cmd
}

func newMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the knowledge assistant as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			server, err := mcpadapter.NewServer(app.IngestUC, app.QueryUC, app.RouterUC, app.ChatUC, app.Logger)
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// openApp bootstraps the service in-process. Logs go to stderr so stdout
// stays reserved for command output and the MCP stream.
func openApp(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	// The queue consumer belongs to the API process.
	cfg.NATSIngestEnabled = false
	return bootstrap.New(commandContext(cmd), cfg, "kbctl", cliLogger(cmd, cfg))
}

func cliLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	logger := logging.NewJSONLoggerTo(cmd.ErrOrStderr(), "kbctl", cfg.LogLevel)
	slog.SetDefault(logger)
	return logger
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func readDocuments(paths []string) ([]domain.SourceDocument, error) {
	docs := make([]domain.SourceDocument, 0, len(paths))
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, domain.SourceDocument{Filename: filepath.Base(path), Content: raw})
	}
	return docs, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
