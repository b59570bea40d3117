// Package tsvlink converts WebAnno TSV 3.2 annotation exports into
// entity-linking datasets.
//
// Tsvlink parses the TSV files that annotation platforms such as INCEpTION
// export, resolves every named-entity span against a knowledge base through
// an entity-fishing service, and serializes the linked annotations as CSV,
// XML or JSON.
//
// # Basic Usage
//
// Create a converter and run a file through the full pipeline:
//
//	conv, err := tsvlink.NewConverter(tsvlink.WithLanguage("en"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conv.Close()
//
//	data, summary, err := conv.ConvertFile(ctx, "corpus/notice.tsv", tsvlink.FormatCSV)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d spans, %d resolved, %d without a match\n",
//	    summary.Total, summary.Resolved, summary.NoMatch)
//
// # With a Custom Resolver
//
// Any Resolver implementation can replace the entity-fishing client, for
// example a fixture table in tests:
//
//	table := tsvlink.ResolverFunc(func(ctx context.Context, m tsvlink.Mention) (*tsvlink.Entity, error) {
//	    if m.KBID == "Q90" {
//	        return &tsvlink.Entity{ID: "Q90", Name: "Paris"}, nil
//	    }
//	    return nil, nil
//	})
//	conv, err := tsvlink.NewConverter(tsvlink.WithResolver(table))
package tsvlink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lucaterre/tsvlink/pkg/export"
	"github.com/Lucaterre/tsvlink/pkg/linking"
	"github.com/Lucaterre/tsvlink/pkg/resolve"
	"github.com/Lucaterre/tsvlink/pkg/schema"
	"github.com/Lucaterre/tsvlink/pkg/types"
	"github.com/Lucaterre/tsvlink/pkg/wtsv"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/Lucaterre/tsvlink" without subpackages.
type (
	// Document is a parsed WebAnno TSV file: sentences, tokens and spans.
	Document = types.Document

	// Sentence is one sentence block with its covered source text.
	Sentence = types.Sentence

	// Token is a single token with document-absolute UTF-16 offsets.
	Token = types.Token

	// Span is a named-entity annotation over one or more token segments.
	Span = types.Span

	// Resolution is one exported row: a span joined with its knowledge-base
	// entity, or left unresolved.
	Resolution = types.Resolution

	// Schema is the annotation schema: declared layers plus the label tagset.
	Schema = schema.Schema

	// Mention is a resolver query built from a span.
	Mention = linking.Mention

	// Entity is a knowledge-base record returned by a resolver.
	Entity = linking.Entity

	// Resolver answers mention lookups. The entity-fishing client is the
	// default implementation.
	Resolver = linking.Resolver

	// ResolverFunc adapts a plain function to the Resolver interface.
	ResolverFunc = linking.ResolverFunc

	// Summary reports per-document resolution counts and failures.
	Summary = resolve.Summary

	// Format selects an output serialization.
	Format = export.Format

	// FormatError reports a malformed TSV input with its line number.
	FormatError = wtsv.FormatError
)

// Re-export the output formats.
const (
	FormatCSV  = export.FormatCSV
	FormatXML  = export.FormatXML
	FormatJSON = export.FormatJSON
)

// Converter ties the TSV reader, the entity resolver and the serializers
// together behind one handle.
type Converter struct {
	schema   *schema.Schema
	resolver linking.Resolver
	store    *linking.Store
	merger   *resolve.Merger
	config   *converterConfig
	mu       sync.RWMutex
}

// converterConfig holds converter configuration.
type converterConfig struct {
	schema   *schema.Schema
	lenient  bool
	resolver linking.Resolver
	apiBase  string
	language string
	timeout  time.Duration
	retries  int
	workers  int
	cacheDSN string
	project  string
	logger   logrus.FieldLogger
}

// Option configures a Converter.
type Option func(*converterConfig)

// WithSchema uses a custom annotation schema instead of the builtin
// entity-fishing tagset.
func WithSchema(s *Schema) Option {
	return func(c *converterConfig) {
		c.schema = s
	}
}

// WithLenient coerces labels outside the tagset to sentinel spans instead
// of failing the parse. Sentinel spans are kept in the document but never
// sent to the resolver.
func WithLenient() Option {
	return func(c *converterConfig) {
		c.lenient = true
	}
}

// WithResolver replaces the entity-fishing client with a custom Resolver.
// The converter still memoizes lookups in front of it.
func WithResolver(r Resolver) Option {
	return func(c *converterConfig) {
		c.resolver = r
	}
}

// WithAPIBase points the entity-fishing client at a different service root.
// Default is the public huma-num instance.
func WithAPIBase(url string) Option {
	return func(c *converterConfig) {
		c.apiBase = url
	}
}

// WithLanguage sets the lookup language sent to the knowledge base.
// Default is "fr".
func WithLanguage(lang string) Option {
	return func(c *converterConfig) {
		c.language = lang
	}
}

// WithTimeout bounds each knowledge-base request. Default is 30 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *converterConfig) {
		c.timeout = d
	}
}

// WithRetries sets how many times a failed lookup is retried on server or
// network errors. Default is 3.
func WithRetries(n int) Option {
	return func(c *converterConfig) {
		c.retries = n
	}
}

// WithWorkers sets the number of concurrent resolution workers.
// Default is 4.
func WithWorkers(n int) Option {
	return func(c *converterConfig) {
		c.workers = n
	}
}

// WithCache persists resolutions in a database so repeated runs skip the
// network. The DSN is a sqlite path or a postgres:// URL.
func WithCache(dsn string) Option {
	return func(c *converterConfig) {
		c.cacheDSN = dsn
	}
}

// WithProject sets the element prefix of the XML output root.
// Default is "my_project".
func WithProject(name string) Option {
	return func(c *converterConfig) {
		c.project = name
	}
}

// WithLogger routes converter logging through the given logger.
// Default is the logrus standard logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *converterConfig) {
		c.logger = log
	}
}

// NewConverter creates a new Converter with the given options.
//
// By default, the converter:
//   - Parses against the builtin entity-fishing tagset
//   - Resolves through the public entity-fishing service in French
//   - Memoizes lookups in memory only (enable WithCache for persistence)
//   - Runs 4 resolution workers
//
// Example:
//
//	// Default converter
//	conv, err := tsvlink.NewConverter()
//
//	// Against a self-hosted service, with a persistent cache
//	conv, err := tsvlink.NewConverter(
//	    tsvlink.WithAPIBase("http://localhost:8090/service"),
//	    tsvlink.WithCache("resolutions.db"),
//	)
func NewConverter(opts ...Option) (*Converter, error) {
	config := &converterConfig{
		apiBase:  linking.DefaultBaseURL,
		language: linking.DefaultLanguage,
		timeout:  30 * time.Second,
		retries:  3,
		workers:  4,
		project:  export.DefaultProject,
	}

	for _, opt := range opts {
		opt(config)
	}

	// Load the builtin schema if not provided
	sch := config.schema
	if sch == nil {
		var err error
		sch, err = schema.Default()
		if err != nil {
			return nil, fmt.Errorf("loading builtin schema: %w", err)
		}
	}
	if config.lenient && !sch.Lenient {
		cp := *sch
		cp.Lenient = true
		sch = &cp
	}

	// Create the resolver chain: client (or custom resolver) behind a cache
	resolver := config.resolver
	if resolver == nil {
		resolver = linking.NewClient(linking.Config{
			BaseURL:    config.apiBase,
			Language:   config.language,
			Timeout:    config.timeout,
			MaxRetries: config.retries,
		})
	}

	var store *linking.Store
	if config.cacheDSN != "" {
		var err error
		store, err = linking.OpenStore(config.cacheDSN)
		if err != nil {
			return nil, fmt.Errorf("opening resolution store: %w", err)
		}
		resolver = linking.NewCacheWithStore(resolver, store, config.logger)
	} else {
		resolver = linking.NewCache(resolver)
	}

	return &Converter{
		schema:   sch,
		resolver: resolver,
		store:    store,
		merger: &resolve.Merger{
			Resolver: resolver,
			Workers:  config.workers,
			Logger:   config.logger,
		},
		config: config,
	}, nil
}

// ParseString parses WebAnno TSV content from a string.
//
// Example:
//
//	doc, err := conv.ParseString(tsvContent)
//	if err != nil {
//	    var ferr *tsvlink.FormatError
//	    if errors.As(err, &ferr) {
//	        fmt.Printf("line %d: %v\n", ferr.Line, err)
//	    }
//	    return err
//	}
func (c *Converter) ParseString(content string) (*Document, error) {
	return c.Parse([]byte(content))
}

// Parse parses WebAnno TSV content from raw bytes.
func (c *Converter) Parse(data []byte) (*Document, error) {
	return wtsv.Parse(data, c.schema)
}

// ParseFile reads and parses a WebAnno TSV file. The document ID becomes
// the file name without its extension.
func (c *Converter) ParseFile(path string) (*Document, error) {
	return wtsv.ParseFile(path, c.schema)
}

// Render serializes a document back to canonical WebAnno TSV bytes.
// Rendering a freshly parsed canonical file reproduces it byte for byte.
func (c *Converter) Render(doc *Document) ([]byte, error) {
	return wtsv.Render(doc, c.schema)
}

// Resolve looks up every non-sentinel span of the document and returns one
// Resolution row per span, in span order. Lookup failures degrade the
// affected rows to unresolved and are reported in the summary; only
// cancellation or an invalid document aborts.
func (c *Converter) Resolve(ctx context.Context, doc *Document) ([]Resolution, *Summary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.merger.Merge(ctx, doc)
}

// Convert resolves the document and serializes the rows in the given
// format.
//
// Example:
//
//	data, summary, err := conv.Convert(ctx, doc, tsvlink.FormatXML)
func (c *Converter) Convert(ctx context.Context, doc *Document, f Format) ([]byte, *Summary, error) {
	rows, summary, err := c.Resolve(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	stem := doc.ID
	if stem == "" {
		stem = "document"
	}

	var data []byte
	switch f {
	case FormatCSV:
		data, err = export.CSV(rows)
	case FormatXML:
		data, err = export.XML(rows, stem, c.config.project)
	case FormatJSON:
		data, err = export.JSON(rows)
	default:
		return nil, nil, fmt.Errorf("unknown output format: %s", f)
	}
	if err != nil {
		return nil, nil, err
	}
	return data, summary, nil
}

// ConvertFile parses a TSV file and runs it through Convert.
//
// Example:
//
//	data, summary, err := conv.ConvertFile(ctx, "corpus/notice.tsv", tsvlink.FormatCSV)
func (c *Converter) ConvertFile(ctx context.Context, path string, f Format) ([]byte, *Summary, error) {
	doc, err := c.ParseFile(path)
	if err != nil {
		return nil, nil, err
	}
	return c.Convert(ctx, doc, f)
}

// Close releases converter resources.
// Always call Close when done with a converter that uses WithCache.
func (c *Converter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Schema returns the annotation schema the converter parses against.
func (c *Converter) Schema() *Schema {
	return c.schema
}

// Labels returns the label tagset in declaration order.
func (c *Converter) Labels() []string {
	return c.schema.Labels()
}

// LoadSchemaFromFile loads an annotation schema from a YAML file.
// Use this with WithSchema to parse against a custom tagset.
//
// Example:
//
//	sch, err := tsvlink.LoadSchemaFromFile("/path/to/tagset.yaml")
//	if err != nil {
//	    return err
//	}
//	conv, err := tsvlink.NewConverter(tsvlink.WithSchema(sch))
func LoadSchemaFromFile(path string) (*Schema, error) {
	loader := schema.NewLoader()
	return loader.LoadFile(path)
}

// DefaultSchema returns the builtin entity-fishing schema.
func DefaultSchema() (*Schema, error) {
	return schema.Default()
}
