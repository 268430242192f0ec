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
	"github.com/strkinlab/strkin/freq"
	"github.com/strkinlab/strkin/str"
)

// An Outcome classifies the comparison of two genotypes at one
// locus.
type Outcome int32

const (
	// Missing: either genotype has fewer than two alleles, so the
	// locus carries no evidence either way.
	Missing Outcome = iota
	// Identical: the unordered allele pairs are exactly equal. This
	// signals the same individual rather than a transmission, and is
	// tracked apart from ConsistentDirect for that reason.
	Identical
	// ConsistentDirect: the genotypes share an allele, as a direct
	// parent-child transmission requires.
	ConsistentDirect
	// ConsistentMutated: no shared allele, but two alleles differ by
	// exactly one repeat step, compatible with a rare single-step
	// mutation during transmission.
	ConsistentMutated
	// Inconsistent: the genotypes exclude a direct relationship at
	// this locus.
	Inconsistent
)

func (o Outcome) String() string {
	switch o {
	case Missing:
		return "missing"
	case Identical:
		return "identical"
	case ConsistentDirect:
		return "consistent-direct"
	case ConsistentMutated:
		return "consistent-mutated"
	case Inconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// One repeat step in allele tenths. Alleles a whole repeat apart
// keep their fractional component, so 9.3 steps to 10.3 and never to
// 9.1 or 10.1.
const stepTenths = 10

// A Comparison is the outcome of comparing two genotypes at one
// locus, with its likelihood ratio. For ConsistentMutated, StepLo
// and StepHi name the allele pair one repeat step apart that
// produced the ratio.
type Comparison struct {
	Outcome        Outcome
	LR             float64
	StepLo, StepHi str.Allele
}

// sharedAllele returns the allele two full, non-identical genotypes
// have in common. Two distinct shared alleles would make the
// genotypes identical, so the shared allele is unique when present.
func sharedAllele(g1, g2 str.Genotype) (str.Allele, bool) {
	if g2.Has(g1.A) {
		return g1.A, true
	}
	if g2.Has(g1.B) {
		return g1.B, true
	}
	return 0, false
}

// mutationStep looks for allele pairs one repeat step apart between
// two full genotypes that share no allele. When several pairs
// qualify, the rarest pair wins, so the locus gets its strongest
// mutation reading; ties go to the smallest pair for determinism.
func mutationStep(locus int32, g1, g2 str.Genotype, freqs *freq.Table) (Comparison, bool) {
	var best Comparison
	found := false
	for _, x := range [2]str.Allele{g1.A, g1.B} {
		for _, y := range [2]str.Allele{g2.A, g2.B} {
			lo, hi := x, y
			if lo > hi {
				lo, hi = hi, lo
			}
			if hi-lo != stepTenths {
				continue
			}
			f := freqs.Frequency(locus, lo)
			if fh := freqs.Frequency(locus, hi); fh < f {
				f = fh
			}
			lr := 1 / f
			better := lr > best.LR ||
				(lr == best.LR && (lo < best.StepLo || (lo == best.StepLo && hi < best.StepHi)))
			if !found || better {
				best = Comparison{Outcome: ConsistentMutated, LR: lr, StepLo: lo, StepHi: hi}
				found = true
			}
		}
	}
	return best, found
}

// Compare classifies the genotypes of one locus and computes the
// likelihood ratio of a direct relationship against an unrelated
// pair. Compare is symmetric: swapping g1 and g2 never changes the
// result, which is what lets parent-of and child-of queries share
// one code path.
func Compare(locus int32, g1, g2 str.Genotype, freqs *freq.Table, par *Params) Comparison {
	if !g1.Full() || !g2.Full() {
		return Comparison{Outcome: Missing, LR: 1}
	}
	if g1 == g2 {
		// alleles are stored in normalized order, so struct equality
		// is multiset equality; the rarer allele gives the stronger
		// standard form
		f := freqs.Frequency(locus, g1.A)
		if fb := freqs.Frequency(locus, g1.B); fb < f {
			f = fb
		}
		return Comparison{Outcome: Identical, LR: 1 / f}
	}
	if a, ok := sharedAllele(g1, g2); ok {
		lr := 1 / freqs.Frequency(locus, a)
		if g1.Homozygous() || g2.Homozygous() {
			// a homozygote offers the shared allele twice, which the
			// standard paternity index corrects by half
			lr /= 2
		}
		return Comparison{Outcome: ConsistentDirect, LR: lr}
	}
	if c, ok := mutationStep(locus, g1, g2, freqs); ok {
		c.LR *= par.MutationRate
		return c
	}
	return Comparison{Outcome: Inconsistent, LR: par.InconsistentLR}
}
