package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Lucaterre/tsvlink"
	"github.com/Lucaterre/tsvlink/pkg/export"
	"github.com/Lucaterre/tsvlink/pkg/linking"
)

var (
	convertFormat   string
	convertOutDir   string
	convertProject  string
	convertLanguage string
	convertAPIBase  string
	convertSchema   string
	convertLenient  bool
	convertWorkers  int
	convertTimeout  time.Duration
	convertRetries  int
	convertCache    string
	convertDryRun   bool
	convertContext  bool
	convertColor    string
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.tsv|directory>",
	Short: "Convert TSV exports into a linked dataset",
	Long: `Parse one WebAnno TSV file (or every .tsv file under a directory), resolve
its named-entity spans against the knowledge base, and write one output file
per input into the output directory.

Spans the knowledge base cannot match stay in the output with an empty
identifier; they are counted in the summary but never fail the run.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertFormat, "format", "csv", "Output format: csv, xml, json")
	convertCmd.Flags().StringVar(&convertOutDir, "out-dir", "out", "Directory for converted files")
	convertCmd.Flags().StringVar(&convertProject, "project-name", export.DefaultProject, "Project prefix of the XML root element")
	convertCmd.Flags().StringVar(&convertLanguage, "language", linking.DefaultLanguage, "Knowledge-base lookup language")
	convertCmd.Flags().StringVar(&convertAPIBase, "api-base", linking.DefaultBaseURL, "Entity-fishing service root")
	convertCmd.Flags().StringVar(&convertSchema, "schema", "", "Path to a custom tagset YAML")
	convertCmd.Flags().BoolVar(&convertLenient, "lenient", false, "Coerce labels outside the tagset instead of failing")
	convertCmd.Flags().IntVar(&convertWorkers, "workers", 4, "Concurrent resolution workers")
	convertCmd.Flags().DurationVar(&convertTimeout, "timeout", 30*time.Second, "Per-request knowledge-base timeout")
	convertCmd.Flags().IntVar(&convertRetries, "retries", 3, "Retries per lookup on server or network errors")
	convertCmd.Flags().StringVar(&convertCache, "cache", "", "Resolution store DSN (sqlite path or postgres:// URL)")
	convertCmd.Flags().BoolVar(&convertDryRun, "dry-run", false, "Parse and validate only, no lookups, no output")
	convertCmd.Flags().BoolVar(&convertContext, "context", true, "Carry the sentence context into the output")
	convertCmd.Flags().StringVar(&convertColor, "color", "auto", "Color output: auto, always, never")
}

// styles holds the color formatters for the human summary.
type styles struct {
	heading *color.Color
	ok      *color.Color
	warn    *color.Color
	fail    *color.Color
	path    *color.Color
}

// newStyles creates color formatters for converter output.
// enabled=false respects --color=never and the NO_COLOR env var.
func newStyles(enabled bool) *styles {
	s := &styles{
		heading: color.New(color.Bold),
		ok:      color.New(color.FgHiGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgHiRed),
		path:    color.New(color.FgHiBlue),
	}

	if !enabled {
		s.heading.DisableColor()
		s.ok.DisableColor()
		s.warn.DisableColor()
		s.fail.DisableColor()
		s.path.DisableColor()
	}

	return s
}

// colorEnabled resolves the --color flag against the terminal.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default: // "auto"
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	target := args[0]

	inputs, err := collectInputs(target)
	if err != nil {
		return err
	}

	format, err := export.ParseFormat(convertFormat)
	if err != nil {
		return err
	}

	conv, err := newConverter()
	if err != nil {
		return err
	}
	defer conv.Close()

	s := newStyles(colorEnabled(convertColor))
	out := cmd.OutOrStdout()
	writer := &export.Writer{OutDir: convertOutDir, Project: convertProject}
	ctx := context.Background()

	var documents, spans, resolved, noMatch, failed int

	for _, path := range inputs {
		doc, err := conv.ParseFile(path)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}

		if convertDryRun {
			fmt.Fprintf(out, "%s %s: %d sentences, %d spans\n",
				s.ok.Sprint("parsed"), s.path.Sprint(path), len(doc.Sentences), len(doc.Spans))
			documents++
			spans += len(doc.Spans)
			continue
		}

		rows, summary, err := conv.Resolve(ctx, doc)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		if !convertContext {
			for i := range rows {
				rows[i].Context = ""
			}
		}

		outPath, err := writer.Write(format, doc.ID, rows)
		if err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}

		unresolved := summary.NoMatch + summary.Failed
		status := s.ok.Sprint("linked")
		if unresolved > 0 {
			status = s.warn.Sprint("linked")
		}
		fmt.Fprintf(out, "%s %s: %d/%d resolved, wrote %s\n",
			status, s.path.Sprint(path), summary.Resolved, summary.Total, s.path.Sprint(outPath))
		for _, f := range summary.Failures {
			fmt.Fprintf(out, "  %s %s: %s\n", s.fail.Sprint("failed"), f.Surface, f.Reason)
		}

		documents++
		spans += summary.Total
		resolved += summary.Resolved
		noMatch += summary.NoMatch
		failed += summary.Failed
	}

	if convertDryRun {
		fmt.Fprintf(out, "\n%s %d documents, %d spans\n", s.heading.Sprint("Validated"), documents, spans)
		return nil
	}

	fmt.Fprintf(out, "\n%s %d documents: %d spans, %d resolved, %d without a match, %d failed\n",
		s.heading.Sprint("Converted"), documents, spans, resolved, noMatch, failed)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// newConverter assembles the pipeline from the convert flags.
func newConverter() (*tsvlink.Converter, error) {
	opts := []tsvlink.Option{
		tsvlink.WithAPIBase(convertAPIBase),
		tsvlink.WithLanguage(convertLanguage),
		tsvlink.WithTimeout(convertTimeout),
		tsvlink.WithRetries(convertRetries),
		tsvlink.WithWorkers(convertWorkers),
		tsvlink.WithProject(convertProject),
	}
	if convertSchema != "" {
		sch, err := tsvlink.LoadSchemaFromFile(convertSchema)
		if err != nil {
			return nil, fmt.Errorf("loading schema: %w", err)
		}
		opts = append(opts, tsvlink.WithSchema(sch))
	}
	if convertLenient {
		opts = append(opts, tsvlink.WithLenient())
	}
	if convertCache != "" {
		opts = append(opts, tsvlink.WithCache(convertCache))
	}
	return tsvlink.NewConverter(opts...)
}

// collectInputs expands the target into TSV files: the file itself, or
// every .tsv beneath a directory, sorted for stable output order.
func collectInputs(target string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("target does not exist: %s", target)
	}

	if !info.IsDir() {
		return []string{target}, nil
	}

	var inputs []string
	err = filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			inputs = append(inputs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", target, err)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no .tsv files under %s", target)
	}
	sort.Strings(inputs)
	return inputs, nil
}
