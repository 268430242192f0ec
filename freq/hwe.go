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

package freq

import (
	"bufio"
	"fmt"
	"math"
	"math/big"
	"os"
	"sort"

	"github.com/BenLubar/memoize"
	"github.com/exascience/pargo/parallel"

	"github.com/strkinlab/strkin/str"
)

var (
	hweProbability = memoize.Memoize(exactProbability).(func(int64, int64, int64) float64)
	rangeFactorial = memoize.Memoize(factorialRange).(func(int64, int64) *big.Int)
)

func factorialRange(a, b int64) *big.Int {
	return big.NewInt(1).MulRange(a, b)
}

// exactProbability yields the probability of observing exactly Aa
// heterozygotes among AA+Aa+aa individuals carrying Aa+2*aa minor
// alleles, under random mating.
func exactProbability(AA, Aa, aa int64) float64 {
	A := 2*AA + Aa
	a := 2*aa + Aa
	N := AA + Aa + aa
	var num, denom big.Int
	num.Exp(big.NewInt(2), big.NewInt(Aa), nil)
	num.Mul(&num, rangeFactorial(1, A))
	num.Mul(&num, rangeFactorial(1, a))
	denom.Set(rangeFactorial(N+1, 2*N))
	denom.Mul(&denom, rangeFactorial(1, AA))
	denom.Mul(&denom, rangeFactorial(1, Aa))
	denom.Mul(&denom, rangeFactorial(1, aa))
	p, _ := new(big.Rat).SetFrac(&num, &denom).Float64()
	return p
}

// tailSum walks the heterozygote count away from the observed
// configuration in steps of two, trading against one of each
// homozygote, and sums the probabilities of the configurations that
// are at most as likely as the observed one.
func tailSum(baseP float64, AA, Aa, aa, step int64) float64 {
	sum := 0.0
	for {
		Aa += step
		AA -= step / 2
		aa -= step / 2
		if Aa < 0 || aa < 0 {
			return sum
		}
		p := hweProbability(AA, Aa, aa)
		if p > baseP {
			continue
		}
		if p <= math.SmallestNonzeroFloat64 {
			return sum
		}
		sum += p
	}
}

// Exact computes the exact Hardy-Weinberg equilibrium p-value of a
// biallelic genotype configuration with Fisher's method: the summed
// probability of every heterozygote count at most as likely as the
// observed one, given the allele counts. It is safe for concurrent
// use.
func Exact(AA, Aa, aa int64) float64 {
	if aa > AA {
		AA, aa = aa, AA
	}
	baseP := hweProbability(AA, Aa, aa)
	return baseP + tailSum(baseP, AA, Aa, aa, 2) + tailSum(baseP, AA, Aa, aa, -2)
}

// A LocusHWE is one row of an equilibrium report. The exact test is
// biallelic, so each locus is collapsed to its two most frequent
// alleles; genotypes involving any other allele are left out of the
// genotype counts. Loci with fewer than two observed alleles are not
// testable and report p-value 1, with "-" standing in for the absent
// alleles.
type LocusHWE struct {
	Locus    string
	Major    string
	Minor    string
	MajorHom int64
	Het      int64
	MinorHom int64
	P        float64
}

type testPair struct {
	a, b str.Allele
	ok   bool
}

func testPairs(pop *str.Population, t *Table) []testPair {
	pairs := make([]testPair, len(pop.Loci))
	for ord := range pairs {
		counts := t.counts[ord]
		alleles := make([]str.Allele, 0, len(counts))
		for a := range counts {
			alleles = append(alleles, a)
		}
		sort.Slice(alleles, func(i, j int) bool {
			if counts[alleles[i]] != counts[alleles[j]] {
				return counts[alleles[i]] > counts[alleles[j]]
			}
			return alleles[i] < alleles[j]
		})
		switch len(alleles) {
		case 0:
		case 1:
			pairs[ord] = testPair{a: alleles[0], b: alleles[0], ok: true}
		default:
			pairs[ord] = testPair{a: alleles[0], b: alleles[1], ok: true}
		}
	}
	return pairs
}

// HWEReport tests every locus of the population for Hardy-Weinberg
// equilibrium against the counts the frequency table was built from.
func HWEReport(pop *str.Population, t *Table) []LocusHWE {
	nLoci := len(pop.Loci)
	pairs := testPairs(pop, t)
	result := parallel.RangeReduce(0, len(pop.Profiles), 0, func(low, high int) interface{} {
		counts := make([][3]int64, nLoci)
		for _, profile := range pop.Profiles[low:high] {
			for ord, g := range profile.Genotypes {
				if g.N != 2 {
					continue
				}
				pair := pairs[ord]
				if !pair.ok {
					continue
				}
				switch {
				case g.A == pair.a && g.B == pair.a:
					counts[ord][0]++
				case g.A == pair.b && g.B == pair.b:
					counts[ord][2]++
				case pair.a != pair.b && g.Has(pair.a) && g.Has(pair.b):
					counts[ord][1]++
				}
			}
		}
		return counts
	}, func(x, y interface{}) interface{} {
		left := x.([][3]int64)
		right := y.([][3]int64)
		for ord := range left {
			for i, n := range right[ord] {
				left[ord][i] += n
			}
		}
		return left
	})
	counts := result.([][3]int64)
	report := make([]LocusHWE, nLoci)
	for ord := range report {
		pair := pairs[ord]
		row := LocusHWE{
			Locus:    *pop.Loci[ord],
			Major:    "-",
			Minor:    "-",
			MajorHom: counts[ord][0],
			Het:      counts[ord][1],
			MinorHom: counts[ord][2],
			P:        1,
		}
		if pair.ok {
			row.Major = pair.a.String()
			if pair.b != pair.a {
				row.Minor = pair.b.String()
				row.P = Exact(row.MajorHom, row.Het, row.MinorHom)
			}
		}
		report[ord] = row
	}
	return report
}

// WriteHWEReport writes an equilibrium report as a CSV file.
func WriteHWEReport(name string, report []LocusHWE) (err error) {
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer func() {
		nerr := file.Close()
		if err == nil {
			err = nerr
		}
	}()
	w := bufio.NewWriter(file)
	fmt.Fprintln(w, "locus,major,minor,major_hom,het,minor_hom,p")
	for _, row := range report {
		fmt.Fprintf(w, "%s,%s,%s,%d,%d,%d,%g\n", row.Locus, row.Major, row.Minor, row.MajorHom, row.Het, row.MinorHom, row.P)
	}
	return w.Flush()
}
