package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Lucaterre/tsvlink"
	"github.com/Lucaterre/tsvlink/pkg/linking"
	"github.com/Lucaterre/tsvlink/pkg/serve"
)

var (
	serveAddr     string
	serveAPIBase  string
	serveLanguage string
	serveCache    string
	serveWorkers  int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as an HTTP conversion service",
	Long: `Run tsvlink as a long-lived HTTP service. POST a WebAnno TSV document to
/convert to receive the linked dataset; liveness is on /healthz and
prometheus metrics on /metrics.

The process loads the schema once at startup and serves requests until
SIGTERM or SIGINT is received.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8090", "Listen address")
	serveCmd.Flags().StringVar(&serveAPIBase, "api-base", linking.DefaultBaseURL, "Entity-fishing service root")
	serveCmd.Flags().StringVar(&serveLanguage, "language", linking.DefaultLanguage, "Knowledge-base lookup language")
	serveCmd.Flags().StringVar(&serveCache, "cache", "", "Resolution store DSN (sqlite path or postgres:// URL)")
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 4, "Concurrent resolution workers per document")
}

func runServe(cmd *cobra.Command, args []string) error {
	opts := []tsvlink.Option{
		tsvlink.WithAPIBase(serveAPIBase),
		tsvlink.WithLanguage(serveLanguage),
		tsvlink.WithWorkers(serveWorkers),
	}
	if serveCache != "" {
		opts = append(opts, tsvlink.WithCache(serveCache))
	}
	conv, err := tsvlink.NewConverter(opts...)
	if err != nil {
		return err
	}
	defer conv.Close()

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		cancel()
	}()

	srv := serve.New(conv, serve.Config{
		Addr:   serveAddr,
		Logger: logrus.StandardLogger(),
	})
	return srv.Run(ctx)
}
