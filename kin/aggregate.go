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
	"fmt"
	"math"

	"github.com/strkinlab/strkin/freq"
	"github.com/strkinlab/strkin/str"
)

// Evidence accumulates the per-locus comparisons of one
// query/candidate pair. The combined likelihood ratio is kept as a
// sum of natural logs; across dozens of loci the plain product would
// overflow or underflow float64.
type Evidence struct {
	LogCLR       float64
	Identical    int32
	Direct       int32
	Mutated      int32
	Missing      int32
	Inconsistent int32
}

// Consistent returns the number of loci consistent with a direct
// relationship, with or without a mutation step.
func (e *Evidence) Consistent() int32 {
	return e.Direct + e.Mutated
}

// CLR returns the combined likelihood ratio. It can overflow to +Inf
// for very strong matches; use LogCLR or FormatCLR where that
// matters.
func (e *Evidence) CLR() float64 {
	return math.Exp(e.LogCLR)
}

// Posterior applies Bayes' rule to the combined likelihood ratio and
// a prior probability of the relationship. The computation runs
// entirely in log space, so extreme ratios saturate at 0 or 1
// instead of dividing infinities.
func (e *Evidence) Posterior(prior float64) float64 {
	x := e.LogCLR + math.Log(prior) - math.Log(1-prior)
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	t := math.Exp(x)
	return t / (1 + t)
}

// ScorePair compares a query against one candidate across all loci
// of the reference population. The query genotypes must already be
// aligned to the reference locus order.
func ScorePair(qAligned []str.Genotype, cand *str.Profile, freqs *freq.Table, par *Params) Evidence {
	var e Evidence
	for ord := range qAligned {
		c := Compare(int32(ord), qAligned[ord], cand.Genotypes[ord], freqs, par)
		switch c.Outcome {
		case Missing:
			e.Missing++
			continue
		case Identical:
			e.Identical++
		case ConsistentDirect:
			e.Direct++
		case ConsistentMutated:
			e.Mutated++
		case Inconsistent:
			e.Inconsistent++
		}
		e.LogCLR += math.Log(c.LR)
	}
	return e
}

// FormatCLR renders a log-space combined likelihood ratio as a
// decimal mantissa and exponent, without materializing a float64
// that may not be able to hold it.
func FormatCLR(logCLR float64) string {
	l10 := logCLR / math.Ln10
	exp := int(math.Floor(l10))
	mant := math.Pow(10, l10-float64(exp))
	// keep the mantissa below 10 after rounding to four digits
	if mant >= 9.99995 {
		mant = 1
		exp++
	}
	return fmt.Sprintf("%.4fe%+d", mant, exp)
}
