// Package anchor aligns a candidate word sequence against a reference word
// sequence with a token-level edit distance and derives anchors (trusted
// word correspondences) and an edit report from the optimal path.
package anchor

import (
	"github.com/antzucaro/matchr"

	"github.com/forPelevin/realign/internal/domain/textnorm"
	"github.com/forPelevin/realign/internal/types"
)

const (
	DefaultConfidenceThreshold = 0.8

	// exactConfidence is used when the surface forms are identical;
	// normalizedConfidence when only the normalized forms agree.
	exactConfidence      = 1.0
	normalizedConfidence = 0.9
)

type Options struct {
	// ConfidenceThreshold separates trusted anchors from the rest.
	ConfidenceThreshold float64
	// NearMatchThreshold enables near-match anchors for substituted pairs
	// whose Jaro-Winkler similarity reaches it. Zero disables them.
	NearMatchThreshold float64
}

func DefaultOptions() Options {
	return Options{ConfidenceThreshold: DefaultConfidenceThreshold}
}

// Op is one step of the optimal path. Cand or Ref is -1 when the operation
// has no token on that side.
type Op struct {
	Kind types.EditKind
	Cand int
	Ref  int
}

type Result struct {
	Ops       []Op
	Anchors   []types.Anchor
	Report    types.EditReport
	Threshold float64
}

// Trusted returns the anchors at or above the confidence threshold.
func (r Result) Trusted() []types.Anchor {
	out := make([]types.Anchor, 0, len(r.Anchors))
	for _, a := range r.Anchors {
		if a.Confidence >= r.Threshold {
			out = append(out, a)
		}
	}
	return out
}

// TrustedByCandidate indexes trusted anchors by candidate word index.
func (r Result) TrustedByCandidate() map[int]types.Anchor {
	out := make(map[int]types.Anchor)
	for _, a := range r.Trusted() {
		out[a.CandIndex] = a
	}
	return out
}

// backpointers, one byte per DP cell
const (
	ptrNone byte = iota
	ptrDiag
	ptrDel
	ptrIns
)

// Align computes the minimum edit distance alignment between cand and ref
// (match 0, substitution/insertion/deletion 1) over normalized tokens.
// Equal-cost choices resolve as match > substitution > deletion > insertion.
func Align(cand, ref []string, opts Options) Result {
	nc := textnorm.Words(cand)
	nr := textnorm.Words(ref)
	n, m := len(nc), len(nr)

	// Costs use two rolling rows; only the backpointers are kept for the
	// full table.
	ptr := make([]byte, (n+1)*(m+1))
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for j := 1; j <= m; j++ {
		prev[j] = j
		ptr[j] = ptrDel
	}
	for i := 1; i <= n; i++ {
		cur[0] = i
		ptr[i*(m+1)] = ptrIns
		for j := 1; j <= m; j++ {
			best := prev[j-1]
			if nc[i-1] != nr[j-1] {
				best++
			}
			p := ptrDiag
			if c := cur[j-1] + 1; c < best {
				best, p = c, ptrDel
			}
			if c := prev[j] + 1; c < best {
				best, p = c, ptrIns
			}
			cur[j] = best
			ptr[i*(m+1)+j] = p
		}
		prev, cur = cur, prev
	}

	ops := backtrace(ptr, nc, nr)
	res := Result{Ops: ops, Threshold: opts.ConfidenceThreshold}
	res.Anchors = anchors(ops, cand, ref, nc, nr, opts)
	res.Report = report(ops, cand, ref)
	return res
}

func backtrace(ptr []byte, nc, nr []string) []Op {
	n, m := len(nc), len(nr)
	ops := make([]Op, 0, max(n, m))
	i, j := n, m
	for i > 0 || j > 0 {
		switch ptr[i*(m+1)+j] {
		case ptrDiag:
			kind := types.EditSubstitution
			if nc[i-1] == nr[j-1] {
				kind = types.EditMatch
			}
			ops = append(ops, Op{Kind: kind, Cand: i - 1, Ref: j - 1})
			i, j = i-1, j-1
		case ptrDel:
			ops = append(ops, Op{Kind: types.EditDeletion, Cand: -1, Ref: j - 1})
			j--
		default:
			ops = append(ops, Op{Kind: types.EditInsertion, Cand: i - 1, Ref: -1})
			i--
		}
	}
	for l, r := 0, len(ops)-1; l < r; l, r = l+1, r-1 {
		ops[l], ops[r] = ops[r], ops[l]
	}
	return ops
}

func anchors(ops []Op, cand, ref, nc, nr []string, opts Options) []types.Anchor {
	var out []types.Anchor
	for _, op := range ops {
		switch op.Kind {
		case types.EditMatch:
			// Tokens that normalize to nothing (stray punctuation) align but
			// never anchor.
			if nc[op.Cand] == "" {
				continue
			}
			conf := normalizedConfidence
			if cand[op.Cand] == ref[op.Ref] {
				conf = exactConfidence
			}
			out = append(out, types.Anchor{
				CandIndex:  op.Cand,
				RefIndex:   op.Ref,
				Confidence: conf,
				Exact:      true,
				Text:       ref[op.Ref],
			})
		case types.EditSubstitution:
			if opts.NearMatchThreshold <= 0 || nc[op.Cand] == "" || nr[op.Ref] == "" {
				continue
			}
			sim := matchr.JaroWinkler(nc[op.Cand], nr[op.Ref], false)
			if sim < opts.NearMatchThreshold {
				continue
			}
			out = append(out, types.Anchor{
				CandIndex:  op.Cand,
				RefIndex:   op.Ref,
				Confidence: sim,
				Text:       ref[op.Ref],
			})
		}
	}
	return out
}

func report(ops []Op, cand, ref []string) types.EditReport {
	rep := types.EditReport{Spans: []types.EditSpan{}}
	ci, ri := 0, 0
	var span *types.EditSpan
	flush := func() {
		if span != nil {
			rep.Spans = append(rep.Spans, *span)
			span = nil
		}
	}
	for _, op := range ops {
		switch op.Kind {
		case types.EditMatch:
			rep.Matches++
		case types.EditSubstitution:
			rep.Substitutions++
		case types.EditInsertion:
			rep.Insertions++
		case types.EditDeletion:
			rep.Deletions++
		}
		if op.Kind == types.EditMatch {
			flush()
		} else {
			if span != nil && span.Kind != op.Kind {
				flush()
			}
			if span == nil {
				span = &types.EditSpan{Kind: op.Kind, CandStart: ci, CandEnd: ci, RefStart: ri, RefEnd: ri}
			}
			if op.Cand >= 0 {
				span.CandWords = append(span.CandWords, cand[op.Cand])
				span.CandEnd = op.Cand + 1
			}
			if op.Ref >= 0 {
				span.RefWords = append(span.RefWords, ref[op.Ref])
				span.RefEnd = op.Ref + 1
			}
		}
		if op.Cand >= 0 {
			ci = op.Cand + 1
		}
		if op.Ref >= 0 {
			ri = op.Ref + 1
		}
	}
	flush()
	rep.Distance = rep.Substitutions + rep.Insertions + rep.Deletions
	return rep
}
