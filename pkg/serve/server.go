// Package serve exposes the conversion pipeline as an HTTP service:
// POST a WebAnno TSV document to /convert and receive the linked dataset
// in the requested output format.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Lucaterre/tsvlink/pkg/export"
	"github.com/Lucaterre/tsvlink/pkg/wtsv"
)

// Version is the service version reported by /healthz.
const Version = "1.0.0"

const defaultMaxBody = 8 << 20

// Server serves conversions over HTTP.
type Server struct {
	conv    Converter
	cfg     Config
	log     logrus.FieldLogger
	metrics *metrics
}

// New creates a server around an assembled converter.
func New(conv Converter, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBody
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{conv: conv, cfg: cfg, log: log, metrics: newMetrics()}
}

// Handler returns the server's route table:
//
//	POST /convert?format=csv|xml|json[&name=stem]
//	GET  /healthz
//	GET  /metrics
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/convert", s.handleConvert)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	return mux
}

// Run listens on the configured address until the context is cancelled,
// then shuts down gracefully, letting in-flight conversions finish.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.WithField("addr", s.cfg.Addr).Info("listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// handleConvert runs one document through the pipeline. Malformed TSV is a
// 400 with the offending line in the body; lookup failures never fail the
// request, they degrade rows to unresolved and show up in the unresolved
// header.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	log := s.log.WithFields(logrus.Fields{
		"request": uuid.NewString(),
		"remote":  r.RemoteAddr,
	})

	s.metrics.inFlight.Inc()
	defer s.metrics.inFlight.Dec()

	formatName := r.URL.Query().Get("format")
	if formatName == "" {
		formatName = string(export.FormatCSV)
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		http.Error(w, fmt.Sprintf("reading request body: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := s.conv.Parse(body)
	if err != nil {
		var ferr *wtsv.FormatError
		if errors.As(err, &ferr) {
			log.WithError(err).Warn("rejecting malformed document")
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if name := r.URL.Query().Get("name"); name != "" {
		doc.ID = name
	}

	data, summary, err := s.conv.Convert(r.Context(), doc, format)
	if err != nil {
		log.WithError(err).Error("conversion failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.metrics.observe(summary.Resolved, summary.NoMatch, summary.Failed, time.Since(start).Seconds())

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set(UnresolvedHeader, strconv.Itoa(summary.NoMatch+summary.Failed))
	if _, err := w.Write(data); err != nil {
		log.WithError(err).Warn("writing response")
		return
	}

	log.WithFields(logrus.Fields{
		"format":   string(format),
		"spans":    summary.Total,
		"resolved": summary.Resolved,
		"duration": time.Since(start).Round(time.Millisecond).String(),
	}).Info("converted document")
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":      true,
		"version": Version,
	})
}

func contentType(f export.Format) string {
	switch f {
	case export.FormatXML:
		return "application/xml; charset=utf-8"
	case export.FormatJSON:
		return "application/json"
	default:
		return "text/csv; charset=utf-8"
	}
}
