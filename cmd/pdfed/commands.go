package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/Epistemic-Technology/pdfed/internal/config"
	"github.com/Epistemic-Technology/pdfed/internal/logger"
	"github.com/Epistemic-Technology/pdfed/internal/pdfdoc"
	"github.com/Epistemic-Technology/pdfed/internal/storage"
	"github.com/Epistemic-Technology/pdfed/server"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "pdfed",
		Short: "PDF annotation editor served over MCP",
		Long: `pdfed keeps annotation state for PDFs viewed in a host application and
renders it back into the document on save.

Run "pdfed serve" from an MCP client configuration to start the server on
stdio. The other commands inspect documents and stored saves offline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $PDFED_CONFIG or ~/.pdfed/config.yaml)")

	load := func() (*config.Config, error) {
		path := configPath
		if path == "" {
			var err error
			if path, err = config.Path(); err != nil {
				return nil, err
			}
		}
		return config.Load(path)
	}

	root.AddCommand(newServeCmd(load))
	root.AddCommand(newInspectCmd())
	root.AddCommand(newDocumentsCmd(load))
	root.AddCommand(newExportCmd(load))
	return root
}

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	var logOutput, logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewLogger(logger.LogConfig{Output: logOutput, Level: logLevel})
			if err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}

			log.Info("Starting pdfed server %s", server.Version)

			srv, closeServer := server.CreateServer(cfg, log)
			defer closeServer()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logOutput, "log-output", "", `"file" or "stderr" (default: detected)`)
	cmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.pdf>",
		Short: "Print the page sizes of a PDF",
		Long: `Print the page count and the size of every page in PDF points, as the
editor lays them out.

Examples:
  pdfed inspect contract.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			doc, err := pdfdoc.Open(data, logger.NewNoOpLogger())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d page(s), id %s\n", args[0], doc.PageCount(), storage.GenerateDocumentID(data))
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PAGE\tWIDTH\tHEIGHT")
			for i, size := range doc.PageSizes() {
				fmt.Fprintf(tw, "%d\t%.1f\t%.1f\n", i+1, size.Width, size.Height)
			}
			return tw.Flush()
		},
	}
}

func newDocumentsCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "documents",
		Short: "List opened documents and their saves",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(load)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			docs, err := store.ListDocuments(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				fmt.Fprintln(out, "No documents have been opened yet.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOCUMENT\tTITLE\tPAGES\tSAVES\tLATEST SAVE")
			for _, d := range docs {
				saves, err := store.ListSaves(ctx, d.DocumentID)
				if err != nil {
					return err
				}
				latest := "-"
				if len(saves) > 0 {
					latest = saves[0].SaveID
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", d.DocumentID, d.Title, d.PageCount, len(saves), latest)
			}
			return tw.Flush()
		},
	}
}

func newExportCmd(load func() (*config.Config, error)) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <save-id>",
		Short: "Write a stored save to a file",
		Long: `Write the PDF bytes of a stored save to a file.

Examples:
  pdfed export sav_0123abcd -o signed.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(load)
			if err != nil {
				return err
			}
			defer store.Close()

			record, data, err := store.GetSave(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = record.SaveID + ".pdf"
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes, %d annotation(s))\n", output, len(data), record.Annotations)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <save-id>.pdf)")
	return cmd
}

func openStore(load func() (*config.Config, error)) (storage.Store, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	return storage.NewSQLiteStore(cfg.Storage.DBPath)
}

