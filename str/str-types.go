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

package str

import (
	"strconv"

	"github.com/strkinlab/strkin/utils"
)

// An Allele is an STR repeat count in tenths of a repeat unit, so
// that microvariant alleles stay exact: 9.3 is stored as 93, and 14
// as 140. One whole repeat is always a difference of exactly 10.
type Allele int32

// String formats the allele the way it appears in profile CSV files.
func (a Allele) String() string {
	whole := int64(a / 10)
	frac := int64(a % 10)
	if frac == 0 {
		return strconv.FormatInt(whole, 10)
	}
	return strconv.FormatInt(whole, 10) + "." + strconv.FormatInt(frac, 10)
}

// A Genotype holds the alleles observed for one person at one locus.
// N is the number of observed alleles: 0 means fully missing, 1 means
// a partial observation (dropout), and 2 a full observation. For full
// observations A <= B, so genotypes behave as unordered pairs.
type Genotype struct {
	A, B Allele
	N    uint8
}

// FullGenotype returns a full observation of the two given alleles,
// in normalized order.
func FullGenotype(a, b Allele) Genotype {
	if b < a {
		a, b = b, a
	}
	return Genotype{A: a, B: b, N: 2}
}

// SingleGenotype returns a partial observation of a single allele.
func SingleGenotype(a Allele) Genotype {
	return Genotype{A: a, N: 1}
}

// Full tells whether both alleles were observed.
func (g Genotype) Full() bool {
	return g.N == 2
}

// Homozygous tells whether this is a full observation of twice the
// same allele.
func (g Genotype) Homozygous() bool {
	return g.N == 2 && g.A == g.B
}

// Has tells whether the given allele occurs in this genotype.
func (g Genotype) Has(a Allele) bool {
	switch g.N {
	case 2:
		return g.A == a || g.B == a
	case 1:
		return g.A == a
	default:
		return false
	}
}

// String formats the genotype the way it appears in profile CSV
// files. Partial observations format as the observed allele followed
// by a missing half.
func (g Genotype) String() string {
	switch g.N {
	case 2:
		if g.A == g.B {
			return g.A.String()
		}
		return g.A.String() + "," + g.B.String()
	case 1:
		return g.A.String() + ",-"
	default:
		return "-"
	}
}

// A Profile is one person's genotypes across the loci of the
// population it belongs to. Genotypes is indexed by the locus
// ordinals of that population.
type Profile struct {
	ID        string
	Genotypes []Genotype
}

// Genotype returns the genotype at the given locus ordinal.
func (p *Profile) Genotype(locus int32) Genotype {
	return p.Genotypes[locus]
}

// A Population is an immutable in-memory collection of profiles that
// share a locus table. Loci holds the locus names in column order;
// their slice positions are the locus ordinals used throughout the
// matching stages.
type Population struct {
	Loci     []utils.Symbol
	Profiles []*Profile
	locusOrd map[utils.Symbol]int32
	ordByID  map[string]int32
}

// NewPopulation returns an empty population over the given loci.
func NewPopulation(loci []utils.Symbol) *Population {
	locusOrd := make(map[utils.Symbol]int32, len(loci))
	for ord, name := range loci {
		locusOrd[name] = int32(ord)
	}
	return &Population{
		Loci:     loci,
		locusOrd: locusOrd,
		ordByID:  make(map[string]int32),
	}
}

// LocusOrd returns the ordinal of the given locus name, if present.
func (pop *Population) LocusOrd(name utils.Symbol) (int32, bool) {
	ord, ok := pop.locusOrd[name]
	return ord, ok
}

// Add appends a profile. It is only called by loaders; after loading
// completes, a population is never modified again.
func (pop *Population) Add(p *Profile) {
	if _, ok := pop.ordByID[p.ID]; !ok {
		pop.ordByID[p.ID] = int32(len(pop.Profiles))
	}
	pop.Profiles = append(pop.Profiles, p)
}

// ByID returns the profile with the given person identifier, or nil.
// If the identifier occurs more than once, the first profile wins.
func (pop *Population) ByID(id string) *Profile {
	if ord, ok := pop.ordByID[id]; ok {
		return pop.Profiles[ord]
	}
	return nil
}

// Aligned returns the genotypes of p, which must belong to pop,
// rearranged into the locus order of the ref population. Loci of ref
// that pop does not know come out as missing genotypes.
func (pop *Population) Aligned(p *Profile, ref *Population) []Genotype {
	aligned := make([]Genotype, len(ref.Loci))
	for ord, name := range ref.Loci {
		if own, ok := pop.locusOrd[name]; ok {
			aligned[ord] = p.Genotypes[own]
		}
	}
	return aligned
}
