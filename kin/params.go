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

// Params bundles the tunables of kinship evaluation.
type Params struct {
	// MutationRate damps the likelihood ratio of a locus whose
	// genotypes differ by one repeat step.
	MutationRate float64
	// InconsistentLR is the small positive likelihood ratio of a
	// locus that excludes the relationship outright.
	InconsistentLR float64
	// MinSharedLoci is the number of loci a candidate must share
	// with the query to survive the prefilter. Zero means half the
	// query's usable loci, rounded up.
	MinSharedLoci int
	// MinDirectLoci is the number of consistent non-identical loci a
	// candidate needs to count as a relationship rather than as the
	// same individual archived twice.
	MinDirectLoci int
	// MaxInconsistentLoci is the number of excluding loci beyond
	// which a candidate is dropped.
	MaxInconsistentLoci int
	// TopK bounds the ranked list per query.
	TopK int
	// Prior is the prior probability of the relationship that the
	// posterior is computed against.
	Prior float64
}

// DefaultParams returns the parameter values strkin uses unless told
// otherwise.
func DefaultParams() Params {
	return Params{
		MutationRate:        0.002,
		InconsistentLR:      1e-6,
		MinSharedLoci:       0,
		MinDirectLoci:       3,
		MaxInconsistentLoci: 3,
		TopK:                10,
		Prior:               0.5,
	}
}
