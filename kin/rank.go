// strkin: a high-performance tool for kinship matching of STR profiles.
// Copyright (c) 2022-2024 the strkin authors.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/strkinlab/strkin/blob/master/LICENSE.txt>.

package kin

import (
	"context"
	"sort"

	"github.com/exascience/pargo/parallel"

	"github.com/strkinlab/strkin/freq"
	"github.com/strkinlab/strkin/index"
	"github.com/strkinlab/strkin/str"
)

// A Result is one ranked candidate for a query.
type Result struct {
	Person string
	Evidence
	Posterior float64
}

// A Match is the outcome of evaluating one query against the
// reference population. Results holds the ranked relationship
// candidates. SameIndividual holds candidates whose evidence is
// almost entirely identical loci; they look like the same person
// archived under another identifier, and are reported apart instead
// of being ranked as relationships.
type Match struct {
	Query          string
	UsableLoci     int
	Results        []Result
	SameIndividual []Result
}

// A Ranker evaluates query profiles against an immutable reference
// population, its frequency table, and its allele index. The shared
// state is read-only, so one Ranker serves any number of goroutines.
type Ranker struct {
	ref   *str.Population
	freqs *freq.Table
	idx   *index.Index
	par   Params
}

// NewRanker returns a ranker over a fully built reference.
func NewRanker(ref *str.Population, freqs *freq.Table, idx *index.Index, par Params) *Ranker {
	return &Ranker{ref: ref, freqs: freqs, idx: idx, par: par}
}

func (r *Ranker) minShared(usable int) int {
	if r.par.MinSharedLoci > 0 {
		return r.par.MinSharedLoci
	}
	return (usable + 1) / 2
}

func result(person string, e Evidence, prior float64) Result {
	return Result{Person: person, Evidence: e, Posterior: e.Posterior(prior)}
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		ri, rj := &results[i], &results[j]
		if ri.LogCLR != rj.LogCLR {
			return ri.LogCLR > rj.LogCLR
		}
		if ci, cj := ri.Consistent(), rj.Consistent(); ci != cj {
			return ci > cj
		}
		if ri.Missing != rj.Missing {
			return ri.Missing < rj.Missing
		}
		return ri.Person < rj.Person
	})
}

// RankOne evaluates one query profile from qpop. The prefilter is
// per-worker scratch state; hand every concurrent caller its own.
//
// A query without a single full genotype on the reference loci
// yields an empty match rather than a fabricated score. Candidates
// with too many excluding loci are dropped. Candidates that pass the
// prefilter on identical loci alone are reported as SameIndividual,
// not as relationships.
func (r *Ranker) RankOne(q *str.Profile, qpop *str.Population, pf *index.Prefilter) Match {
	match := Match{Query: q.ID}
	aligned := qpop.Aligned(q, r.ref)
	for _, g := range aligned {
		if g.Full() {
			match.UsableLoci++
		}
	}
	if match.UsableLoci == 0 {
		return match
	}
	cands := pf.Run(r.idx, r.freqs, r.ref, q.ID, aligned, r.minShared(match.UsableLoci))
	for _, cand := range cands {
		profile := r.ref.Profiles[cand]
		e := ScorePair(aligned, profile, r.freqs, &r.par)
		if int(e.Inconsistent) > r.par.MaxInconsistentLoci {
			continue
		}
		if int(e.Direct) < r.par.MinDirectLoci {
			if int(e.Identical) >= r.par.MinDirectLoci {
				match.SameIndividual = append(match.SameIndividual, result(profile.ID, e, r.par.Prior))
			}
			continue
		}
		match.Results = append(match.Results, result(profile.ID, e, r.par.Prior))
	}
	sortResults(match.Results)
	sortResults(match.SameIndividual)
	if r.par.TopK > 0 && len(match.Results) > r.par.TopK {
		match.Results = match.Results[:r.par.TopK]
	}
	return match
}

// RankAll evaluates all query profiles in parallel. Queries only
// share the read-only reference structures, so they partition freely
// across goroutines; each subrange gets its own prefilter scratch.
// When the context is canceled, the remaining queries are skipped
// and the context error is returned.
func (r *Ranker) RankAll(ctx context.Context, queries *str.Population) ([]Match, error) {
	matches := make([]Match, len(queries.Profiles))
	parallel.Range(0, len(queries.Profiles), 0, func(low, high int) {
		pf := index.NewPrefilter(len(r.ref.Profiles))
		for i := low; i < high; i++ {
			if ctx.Err() != nil {
				return
			}
			matches[i] = r.RankOne(queries.Profiles[i], queries, pf)
		}
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}
