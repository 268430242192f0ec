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

// Package freq estimates per-locus allele frequencies from a
// reference population and tests loci for Hardy-Weinberg
// equilibrium.
package freq

import (
	"github.com/exascience/pargo/parallel"

	"github.com/strkinlab/strkin/str"
)

type locusTable struct {
	freqs map[str.Allele]float64
	floor float64
}

// A Table holds smoothed allele frequencies per locus ordinal of the
// population it was built from. Frequencies use Laplace smoothing:
// an allele seen n times among T observations of V distinct alleles
// gets (n+1)/(T+V+1), and an allele never seen at that locus gets
// the locus floor 1/(T+V+1). A locus without observations answers 1
// for every allele, so it never contributes evidence.
type Table struct {
	loci   []locusTable
	counts []map[str.Allele]int64
	totals []int64
}

// Build counts the alleles of all profiles in the population and
// turns the counts into a frequency table. Both alleles of a full
// genotype count, so a homozygous genotype counts its allele twice;
// a single-allele genotype counts once; missing genotypes do not
// count.
func Build(pop *str.Population) *Table {
	nLoci := len(pop.Loci)
	result := parallel.RangeReduce(0, len(pop.Profiles), 0, func(low, high int) interface{} {
		counts := make([]map[str.Allele]int64, nLoci)
		for ord := range counts {
			counts[ord] = make(map[str.Allele]int64)
		}
		for _, profile := range pop.Profiles[low:high] {
			for ord, g := range profile.Genotypes {
				switch g.N {
				case 2:
					counts[ord][g.A]++
					counts[ord][g.B]++
				case 1:
					counts[ord][g.A]++
				}
			}
		}
		return counts
	}, func(x, y interface{}) interface{} {
		left := x.([]map[str.Allele]int64)
		right := y.([]map[str.Allele]int64)
		for ord := range left {
			for a, n := range right[ord] {
				left[ord][a] += n
			}
		}
		return left
	})
	counts := result.([]map[str.Allele]int64)
	t := &Table{
		loci:   make([]locusTable, nLoci),
		counts: counts,
		totals: make([]int64, nLoci),
	}
	for ord, c := range counts {
		var total int64
		for _, n := range c {
			total += n
		}
		t.totals[ord] = total
		denom := float64(total) + float64(len(c)) + 1
		freqs := make(map[str.Allele]float64, len(c))
		for a, n := range c {
			freqs[a] = (float64(n) + 1) / denom
		}
		t.loci[ord] = locusTable{freqs: freqs, floor: 1 / denom}
	}
	return t
}

// Frequency returns the smoothed frequency of an allele at a locus
// ordinal. Unseen alleles get the locus floor, and unknown loci are
// neutral.
func (t *Table) Frequency(locus int32, a str.Allele) float64 {
	if locus < 0 || int(locus) >= len(t.loci) {
		return 1
	}
	lt := t.loci[locus]
	if f, ok := lt.freqs[a]; ok {
		return f
	}
	return lt.floor
}
