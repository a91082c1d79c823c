package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"restables/internal/config"
	"restables/internal/driver"
	"restables/internal/exporter"
	"restables/internal/logger"
	"restables/internal/service"
)

var version = "dev"

var (
	connectionsFile string
	logLevel        string
)

var rootCmd = &cobra.Command{
	Use:     "restables-cli",
	Short:   "Browse and export database tables with the restables query language",
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logger.New(os.Stderr, logger.Config{Level: logLevel, Format: "text"}))
	},
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newService() *service.Service {
	return service.New(config.FileSource{Path: connectionsFile}, driver.NewManager())
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	defaultFile := os.Getenv("CONNECTIONS_FILE")
	if defaultFile == "" {
		defaultFile = "config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&connectionsFile, "config", "c", defaultFile, "connections file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "WARN", "log level (DEBUG, INFO, WARN, ERROR)")

	connectionsCmd := &cobra.Command{
		Use:   "connections",
		Short: "List configured connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService()
			defer svc.Close()
			names, err := svc.Connections(cmd.Context())
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	tablesCmd := &cobra.Command{
		Use:   "tables <connection>",
		Short: "List the visible tables of a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService()
			defer svc.Close()
			tables, err := svc.Tables(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, t := range tables {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}

	describeCmd := &cobra.Command{
		Use:   "describe <connection> <table>",
		Short: "Show the columns and row count of a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService()
			defer svc.Close()
			info, err := svc.Describe(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), info)
		},
	}

	queryCmd := &cobra.Command{
		Use:   "query <connection> <table> <fields> [options]",
		Short: "Stream table rows as CSV to stdout",
		Example: `  restables-cli query main users '*'
  restables-cli query main users name,id age:d,limit:10:20`,
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService()
			defer svc.Close()

			stream, err := svc.Open(cmd.Context(), requestFromArgs(args))
			if err != nil {
				return err
			}
			defer stream.Close()

			lines, err := exporter.NewLineStream(stream)
			if err != nil {
				return err
			}
			n, err := lines.StreamTo(bufio.NewWriterSize(cmd.OutOrStdout(), 64*1024), 0)
			slog.Info("Query finished", "rows", n)
			return err
		},
	}

	var format, output string
	exportCmd := &cobra.Command{
		Use:   "export <connection> <table> <fields> [options]",
		Short: "Write table rows to a file in csv, json, xlsx or pdf",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := exporter.ParseFormat(format)
			if err != nil {
				return err
			}
			req := requestFromArgs(args)
			if output == "" {
				output = req.Table + f.Extension()
			}

			svc := newService()
			defer svc.Close()
			stream, err := svc.Open(cmd.Context(), req)
			if err != nil {
				return err
			}
			defer stream.Close()

			out, err := os.Create(output)
			if err != nil {
				return err
			}
			enc, err := exporter.NewEncoder(f, out)
			if err != nil {
				out.Close()
				return err
			}
			res, err := exporter.StreamRows(cmd.Context(), stream, enc, 1000)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s in %s\n", res.RowsProcessed, output, res.Duration)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv, json, xlsx, pdf")
	exportCmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <table>.<ext>)")

	rootCmd.AddCommand(connectionsCmd, tablesCmd, describeCmd, queryCmd, exportCmd)
}

func requestFromArgs(args []string) service.Request {
	req := service.Request{Connection: args[0], Table: args[1], Fields: strings.TrimSpace(args[2])}
	if len(args) == 4 {
		req.Options = args[3]
	}
	return req
}
