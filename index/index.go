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

// Package index maintains an inverted allele index over a reference
// population and prefilters match candidates with it, so that the
// scoring stages only ever look at profiles that share enough rare
// alleles with a query.
package index

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"

	"github.com/strkinlab/strkin/freq"
	"github.com/strkinlab/strkin/str"
)

// An Index maps every (locus, allele) pair to the ascending profile
// ordinals of the reference population that carry the allele in a
// full genotype at that locus. Single-allele and missing genotypes
// are not indexed.
type Index struct {
	postings []map[str.Allele][]int32
}

// Build constructs the inverted index over a reference population.
func Build(pop *str.Population) *Index {
	nLoci := len(pop.Loci)
	result := parallel.RangeReduce(0, len(pop.Profiles), 0, func(low, high int) interface{} {
		postings := make([]map[str.Allele][]int32, nLoci)
		for ord := range postings {
			postings[ord] = make(map[str.Allele][]int32)
		}
		for i := low; i < high; i++ {
			for ord, g := range pop.Profiles[i].Genotypes {
				if g.N != 2 {
					continue
				}
				postings[ord][g.A] = append(postings[ord][g.A], int32(i))
				if g.B != g.A {
					postings[ord][g.B] = append(postings[ord][g.B], int32(i))
				}
			}
		}
		return postings
	}, func(x, y interface{}) interface{} {
		// pargo reduces subranges in order, so appending the right
		// half after the left keeps every posting list sorted
		left := x.([]map[str.Allele][]int32)
		right := y.([]map[str.Allele][]int32)
		for ord := range left {
			for a, list := range right[ord] {
				left[ord][a] = append(left[ord][a], list...)
			}
		}
		return left
	})
	return &Index{postings: result.([]map[str.Allele][]int32)}
}

// Candidates returns the profile ordinals carrying the given allele
// at the given locus, in ascending order. The returned slice is
// shared and must not be modified.
func (idx *Index) Candidates(locus int32, a str.Allele) []int32 {
	return idx.postings[locus][a]
}

type rankedLocus struct {
	ord    int32
	rarity float64
}

// A Prefilter holds the reusable scratch state of candidate
// selection for one worker. It is not safe for concurrent use; give
// every goroutine its own.
type Prefilter struct {
	counts  []int16
	touched []int32
	seen    *bitset.BitSet
	ranked  []rankedLocus
}

// NewPrefilter returns a prefilter for a reference population of n
// profiles.
func NewPrefilter(n int) *Prefilter {
	return &Prefilter{
		counts:  make([]int16, n),
		touched: make([]int32, 0, 1024),
		seen:    bitset.New(uint(n)),
	}
}

// Run selects the profile ordinals that share full genotypes with
// the query at minShared or more loci, excluding profiles whose
// person identifier equals the query's. The query's usable loci are
// visited rarest allele first; once too few loci remain for a fresh
// candidate to still reach minShared, only candidates already seen
// keep accumulating. The result is sorted in ascending order and
// remains valid until the next Run.
func (pf *Prefilter) Run(idx *Index, freqs *freq.Table, ref *str.Population, queryID string, aligned []str.Genotype, minShared int) []int32 {
	if minShared < 1 {
		minShared = 1
	}
	ranked := pf.ranked[:0]
	for ord, g := range aligned {
		if g.N != 2 {
			continue
		}
		rarity := freqs.Frequency(int32(ord), g.A)
		if f := freqs.Frequency(int32(ord), g.B); f < rarity {
			rarity = f
		}
		ranked = append(ranked, rankedLocus{ord: int32(ord), rarity: rarity})
	}
	pf.ranked = ranked
	if len(ranked) < minShared {
		return nil
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].rarity != ranked[j].rarity {
			return ranked[i].rarity < ranked[j].rarity
		}
		return ranked[i].ord < ranked[j].ord
	})
	touched := pf.touched[:0]
	for i, locus := range ranked {
		admitNew := len(ranked)-i >= minShared
		if !admitNew && len(touched) == 0 {
			break
		}
		g := aligned[locus.ord]
		pf.seen.ClearAll()
		alleles := [2]str.Allele{g.A, g.B}
		n := 2
		if g.A == g.B {
			n = 1
		}
		for _, a := range alleles[:n] {
			for _, cand := range idx.Candidates(locus.ord, a) {
				if pf.seen.Test(uint(cand)) {
					continue
				}
				pf.seen.Set(uint(cand))
				if pf.counts[cand] == 0 {
					if !admitNew {
						continue
					}
					touched = append(touched, cand)
				}
				pf.counts[cand]++
			}
		}
	}
	result := make([]int32, 0, len(touched))
	for _, cand := range touched {
		if int(pf.counts[cand]) >= minShared && ref.Profiles[cand].ID != queryID {
			result = append(result, cand)
		}
		pf.counts[cand] = 0
	}
	pf.touched = touched[:0]
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
