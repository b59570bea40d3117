// Package resolve merges knowledge-base resolutions into parsed
// documents: one Resolution row per annotated span, in span order.
package resolve

import (
	"context"
	"fmt"

	"github.com/Lucaterre/tsvlink/pkg/linking"
	"github.com/Lucaterre/tsvlink/pkg/types"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Merger turns a document's spans into resolutions using a Resolver.
type Merger struct {
	// Resolver answers mention lookups. Required.
	Resolver linking.Resolver

	// Workers bounds concurrent lookups. Zero or less means sequential.
	Workers int

	// Logger receives per-span warnings. Defaults to the standard logger.
	Logger logrus.FieldLogger
}

// Failure describes one span the resolver could not answer for.
type Failure struct {
	Surface string
	Reason  string
}

// Summary aggregates the outcome of a merge.
type Summary struct {
	Total    int // spans submitted for resolution
	Resolved int // spans matched to an entity
	NoMatch  int // authoritative no-match answers
	Failed   int // resolver failures, identifier left empty
	Failures []Failure

	agg *multierror.Error
}

// Err returns the aggregated resolver failures, nil when all lookups
// were answered.
func (s *Summary) Err() error {
	if s.agg == nil {
		return nil
	}
	return s.agg.ErrorOrNil()
}

// Merge resolves every non-sentinel span of doc. Resolver failures
// degrade the affected rows to unresolved and are reported in the
// summary; only context cancellation (or an invalid document) aborts.
func (m *Merger) Merge(ctx context.Context, doc *types.Document) ([]types.Resolution, *Summary, error) {
	if m.Resolver == nil {
		return nil, nil, fmt.Errorf("resolver is required")
	}
	log := m.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	rows, mentions, err := scaffold(doc)
	if err != nil {
		return nil, nil, err
	}

	workers := m.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(rows) && len(rows) > 0 {
		workers = len(rows)
	}

	entities := make([]*linking.Entity, len(rows))
	failures := make([]error, len(rows))

	origCtx := ctx
	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan int, workers*2)

	g.Go(func() error {
		defer close(jobs)
		for i := range rows {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				e, err := m.Resolver.Resolve(ctx, mentions[i])
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					failures[i] = err
					continue
				}
				entities[i] = e
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if origCtx.Err() != nil {
		return nil, nil, origCtx.Err()
	}

	sum := &Summary{Total: len(rows)}
	for i := range rows {
		switch {
		case failures[i] != nil:
			sum.Failed++
			sum.Failures = append(sum.Failures, Failure{
				Surface: rows[i].Surface,
				Reason:  failures[i].Error(),
			})
			sum.agg = multierror.Append(sum.agg, fmt.Errorf("resolving %q: %w", rows[i].Surface, failures[i]))
			log.WithFields(logrus.Fields{
				"document": rows[i].Document,
				"sentence": rows[i].Sentence,
				"surface":  rows[i].Surface,
			}).WithError(failures[i]).Warn("resolution failed")
		case entities[i] == nil:
			sum.NoMatch++
		default:
			e := entities[i]
			rows[i].Identifier = e.ID
			rows[i].PageID = e.PageID
			rows[i].Name = e.Name
			rows[i].Source = e.Source
			rows[i].Confidence = e.Confidence
			sum.Resolved++
		}
	}
	return rows, sum, nil
}

// scaffold builds the resolution rows and their mentions from the
// document, in span order. Sentinel spans are skipped: they mark
// structure, not entities.
func scaffold(doc *types.Document) ([]types.Resolution, []linking.Mention, error) {
	rows := make([]types.Resolution, 0, len(doc.Spans))
	mentions := make([]linking.Mention, 0, len(doc.Spans))
	ordinals := make(map[int]int)

	for i := range doc.Spans {
		sp := &doc.Spans[i]
		if sp.Sentinel {
			continue
		}
		if len(sp.Segments) == 0 {
			return nil, nil, fmt.Errorf("span %d in sentence %d has no segments", i, sp.Sentence)
		}

		sent, ok := doc.SentenceByIndex(sp.Sentence)
		if !ok {
			return nil, nil, fmt.Errorf("span %d references unknown sentence %d", i, sp.Sentence)
		}
		surface, err := doc.SpanSurface(sp)
		if err != nil {
			return nil, nil, fmt.Errorf("span %d: %w", i, err)
		}
		offs, err := doc.SpanRuneOffsets(sp)
		if err != nil {
			return nil, nil, fmt.Errorf("span %d: %w", i, err)
		}

		ord := ordinals[sp.Sentence]
		ordinals[sp.Sentence] = ord + 1

		rows = append(rows, types.Resolution{
			SpanIndex:  i,
			Document:   doc.ID,
			Sentence:   sp.Sentence,
			Annotation: ord,
			TokenRange: sp.TokenRange(),
			Surface:    surface,
			Label:      sp.Label,
			WikidataID: sp.Identifier,
			Start:      offs.Start,
			End:        offs.End,
			Length:     offs.End - offs.Start,
			Context:    sent.Text,
		})
		mentions = append(mentions, linking.Mention{
			Surface: surface,
			Context: sent.Text,
			KBID:    sp.Identifier,
		})
	}
	return rows, mentions, nil
}
