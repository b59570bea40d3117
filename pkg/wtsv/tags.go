package wtsv

import "github.com/Lucaterre/tsvlink/pkg/types"

// canonicalTags computes the disambiguation tag of every span: spans that
// need one (covering more than one token, or sharing a token with another
// span) are numbered 1..k in span order, all others get 0. The reader
// renumbers file tags with this and the writer emits exactly these
// numbers, so parse and render agree on one canonical tagging.
func canonicalTags(spans []types.Span) []int {
	type cell struct {
		sentence int
		token    int
	}
	covered := make(map[cell]int)
	for _, sp := range spans {
		for _, seg := range sp.Segments {
			for t := seg.Start; t <= seg.End; t++ {
				covered[cell{sp.Sentence, t}]++
			}
		}
	}

	tags := make([]int, len(spans))
	next := 0
	for i := range spans {
		sp := &spans[i]
		need := sp.TokenCount() > 1
		if !need {
			for _, seg := range sp.Segments {
				for t := seg.Start; t <= seg.End && !need; t++ {
					need = covered[cell{sp.Sentence, t}] > 1
				}
			}
		}
		if need {
			next++
			tags[i] = next
		}
	}
	return tags
}
