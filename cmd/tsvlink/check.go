package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Lucaterre/tsvlink"
)

var (
	checkSchemaPath string
	checkLenient    bool
)

var checkCmd = &cobra.Command{
	Use:   "check <input.tsv>",
	Short: "Validate a TSV file and its round-trip",
	Long: `Parse a WebAnno TSV file, verify that rendering and reparsing it
reproduces the same document, and print a span census. No knowledge-base
lookups are made.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkSchemaPath, "schema", "", "Path to a custom tagset YAML")
	checkCmd.Flags().BoolVar(&checkLenient, "lenient", false, "Coerce labels outside the tagset instead of failing")
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]

	var opts []tsvlink.Option
	if checkSchemaPath != "" {
		sch, err := tsvlink.LoadSchemaFromFile(checkSchemaPath)
		if err != nil {
			return fmt.Errorf("loading schema: %w", err)
		}
		opts = append(opts, tsvlink.WithSchema(sch))
	}
	if checkLenient {
		opts = append(opts, tsvlink.WithLenient())
	}
	conv, err := tsvlink.NewConverter(opts...)
	if err != nil {
		return err
	}
	defer conv.Close()

	doc, err := conv.ParseFile(path)
	if err != nil {
		return err
	}

	rendered, err := conv.Render(doc)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	reparsed, err := conv.Parse(rendered)
	if err != nil {
		return fmt.Errorf("reparsing %s: %w", path, err)
	}
	if !doc.Equal(reparsed) {
		return fmt.Errorf("round-trip mismatch: reparsing the rendered file changed the document")
	}

	tokens := 0
	for i := range doc.Sentences {
		tokens += len(doc.Sentences[i].Tokens)
	}
	var discontinuous, linked, sentinels int
	labelCounts := make(map[string]int)
	for i := range doc.Spans {
		sp := &doc.Spans[i]
		labelCounts[sp.Label]++
		if sp.Discontinuous() {
			discontinuous++
		}
		if sp.Identifier != "" {
			linked++
		}
		if sp.Sentinel {
			sentinels++
		}
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "document\t%s\n", doc.ID)
	fmt.Fprintf(w, "sentences\t%d\n", len(doc.Sentences))
	fmt.Fprintf(w, "tokens\t%d\n", tokens)
	fmt.Fprintf(w, "spans\t%d\n", len(doc.Spans))
	fmt.Fprintf(w, "discontinuous\t%d\n", discontinuous)
	fmt.Fprintf(w, "pre-linked\t%d\n", linked)
	if sentinels > 0 {
		fmt.Fprintf(w, "out-of-tagset\t%d\n", sentinels)
	}

	labels := make([]string, 0, len(labelCounts))
	for l := range labelCounts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(w, "label %s\t%d\n", l, labelCounts[l])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out, "round-trip ok")
	return nil
}
