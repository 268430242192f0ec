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
	"strconv"
	"testing"

	"github.com/strkinlab/strkin/freq"
	"github.com/strkinlab/strkin/index"
	"github.com/strkinlab/strkin/str"
	"github.com/strkinlab/strkin/utils"
)

func familyLoci() []utils.Symbol {
	names := make([]string, 10)
	for i := range names {
		names[i] = "L" + strconv.Itoa(i)
	}
	return testLoci(names...)
}

func repeatGenotype(g str.Genotype, n int) []str.Genotype {
	genotypes := make([]str.Genotype, n)
	for i := range genotypes {
		genotypes[i] = g
	}
	return genotypes
}

// makeFamilyReference plants, for the query carrying (14,15) on nine
// loci and (14,17) on the last: a parent sharing an allele
// everywhere, a relative with dropped-out loci, a relative reachable
// only through a mutation step, a candidate excluded on five loci, a
// second record of the query person, and an unrelated profile.
func makeFamilyReference() *str.Population {
	pop := str.NewPopulation(familyLoci())
	pop.Add(&str.Profile{ID: "father", Genotypes: append(
		repeatGenotype(str.FullGenotype(150, 160), 9), str.FullGenotype(140, 160))})
	pop.Add(&str.Profile{ID: "cousin", Genotypes: append(
		repeatGenotype(str.FullGenotype(150, 160), 9), str.FullGenotype(150, 180))})
	pop.Add(&str.Profile{ID: "sibling", Genotypes: append(
		repeatGenotype(str.FullGenotype(150, 160), 7), make([]str.Genotype, 3)...)})
	pop.Add(&str.Profile{ID: "uncle", Genotypes: append(
		repeatGenotype(str.FullGenotype(150, 170), 5), repeatGenotype(str.FullGenotype(210, 220), 5)...)})
	pop.Add(&str.Profile{ID: "twin", Genotypes: append(
		repeatGenotype(str.FullGenotype(140, 150), 9), str.FullGenotype(140, 170))})
	pop.Add(&str.Profile{ID: "stranger", Genotypes: repeatGenotype(str.FullGenotype(210, 220), 10)})
	return pop
}

func familyQuery() *str.Profile {
	return &str.Profile{ID: "Q", Genotypes: append(
		repeatGenotype(str.FullGenotype(140, 150), 9), str.FullGenotype(140, 170))}
}

func makeFamilyRanker(par Params) *Ranker {
	ref := makeFamilyReference()
	return NewRanker(ref, freq.Build(ref), index.Build(ref), par)
}

func TestRankOne(t *testing.T) {
	ranker := makeFamilyRanker(DefaultParams())
	qpop := str.NewPopulation(familyLoci())
	q := familyQuery()
	qpop.Add(q)
	match := ranker.RankOne(q, qpop, index.NewPrefilter(len(ranker.ref.Profiles)))
	if match.Query != "Q" || match.UsableLoci != 10 {
		t.Error("RankOne query failed")
	}
	if len(match.Results) != 3 {
		t.Fatal("RankOne result count failed")
	}
	father, sibling, cousin := match.Results[0], match.Results[1], match.Results[2]
	if father.Person != "father" || father.Direct != 10 || father.Mutated != 0 || father.Inconsistent != 0 {
		t.Error("RankOne 1 failed")
	}
	if sibling.Person != "sibling" || sibling.Direct != 7 || sibling.Missing != 3 {
		t.Error("RankOne 2 failed")
	}
	if cousin.Person != "cousin" || cousin.Direct != 9 || cousin.Mutated != 1 {
		t.Error("RankOne 3 failed")
	}
	if !(father.Posterior > sibling.Posterior && sibling.Posterior > cousin.Posterior) {
		t.Error("RankOne posterior order failed")
	}
	for _, r := range match.Results {
		if r.Posterior <= 0 || r.Posterior >= 1 {
			t.Error("RankOne posterior of", r.Person, "out of range")
		}
	}
	if len(match.SameIndividual) != 1 || match.SameIndividual[0].Person != "twin" ||
		match.SameIndividual[0].Identical != 10 {
		t.Error("RankOne same individual failed")
	}
}

func TestRankOnePartialQuery(t *testing.T) {
	ranker := makeFamilyRanker(DefaultParams())
	qpop := str.NewPopulation(familyLoci())
	q := &str.Profile{ID: "Q", Genotypes: append(
		repeatGenotype(str.FullGenotype(140, 150), 8), str.SingleGenotype(140), str.Genotype{})}
	qpop.Add(q)
	match := ranker.RankOne(q, qpop, index.NewPrefilter(len(ranker.ref.Profiles)))
	if match.UsableLoci != 8 {
		t.Error("RankOne partial usable loci failed")
	}
	if len(match.Results) != 4 {
		t.Fatal("RankOne partial result count failed")
	}
	// cousin and father tie on evidence and rank alphabetically;
	// uncle sits at the inconsistency limit and survives
	if match.Results[0].Person != "cousin" || match.Results[1].Person != "father" ||
		match.Results[2].Person != "sibling" || match.Results[3].Person != "uncle" {
		t.Error("RankOne partial order failed")
	}
	if match.Results[0].LogCLR != match.Results[1].LogCLR {
		t.Error("RankOne partial tie failed")
	}
	if uncle := match.Results[3]; uncle.Inconsistent != 3 || uncle.Posterior >= 1e-6 {
		t.Error("RankOne partial uncle failed")
	}
	if len(match.SameIndividual) != 1 || match.SameIndividual[0].Identical != 8 {
		t.Error("RankOne partial same individual failed")
	}
}

func TestRankOneTopK(t *testing.T) {
	par := DefaultParams()
	par.TopK = 2
	ranker := makeFamilyRanker(par)
	qpop := str.NewPopulation(familyLoci())
	q := familyQuery()
	qpop.Add(q)
	match := ranker.RankOne(q, qpop, index.NewPrefilter(len(ranker.ref.Profiles)))
	if len(match.Results) != 2 || match.Results[0].Person != "father" || match.Results[1].Person != "sibling" {
		t.Error("RankOne top-k failed")
	}
}

func TestRankOneMinShared(t *testing.T) {
	par := DefaultParams()
	par.MinSharedLoci = 8
	ranker := makeFamilyRanker(par)
	qpop := str.NewPopulation(familyLoci())
	q := familyQuery()
	qpop.Add(q)
	match := ranker.RankOne(q, qpop, index.NewPrefilter(len(ranker.ref.Profiles)))
	if len(match.Results) != 2 || match.Results[0].Person != "father" || match.Results[1].Person != "cousin" {
		t.Error("RankOne min shared failed")
	}
}

func TestRankOneMaxInconsistent(t *testing.T) {
	par := DefaultParams()
	par.MaxInconsistentLoci = 10
	ranker := makeFamilyRanker(par)
	qpop := str.NewPopulation(familyLoci())
	q := familyQuery()
	qpop.Add(q)
	match := ranker.RankOne(q, qpop, index.NewPrefilter(len(ranker.ref.Profiles)))
	if len(match.Results) != 4 || match.Results[3].Person != "uncle" {
		t.Error("RankOne max inconsistent failed")
	}
}

func TestRankOneNoUsableLoci(t *testing.T) {
	ranker := makeFamilyRanker(DefaultParams())
	qpop := str.NewPopulation(familyLoci())
	q := &str.Profile{ID: "QE", Genotypes: make([]str.Genotype, 10)}
	qpop.Add(q)
	match := ranker.RankOne(q, qpop, index.NewPrefilter(len(ranker.ref.Profiles)))
	if match.Query != "QE" || match.UsableLoci != 0 || match.Results != nil || match.SameIndividual != nil {
		t.Error("RankOne without usable loci failed")
	}
}

func TestRankOneAlignment(t *testing.T) {
	ranker := makeFamilyRanker(DefaultParams())
	pf := index.NewPrefilter(len(ranker.ref.Profiles))
	qpop := str.NewPopulation(familyLoci())
	q := familyQuery()
	qpop.Add(q)
	match := ranker.RankOne(q, qpop, pf)

	loci := familyLoci()
	reversedLoci := make([]utils.Symbol, len(loci))
	for i, name := range loci {
		reversedLoci[len(loci)-1-i] = name
	}
	reversedPop := str.NewPopulation(reversedLoci)
	genotypes := familyQuery().Genotypes
	reversedGenotypes := make([]str.Genotype, len(genotypes))
	for i, g := range genotypes {
		reversedGenotypes[len(genotypes)-1-i] = g
	}
	reversed := &str.Profile{ID: "Q", Genotypes: reversedGenotypes}
	reversedPop.Add(reversed)
	reversedMatch := ranker.RankOne(reversed, reversedPop, pf)

	if len(reversedMatch.Results) != len(match.Results) {
		t.Fatal("RankOne alignment result count failed")
	}
	for i := range match.Results {
		if match.Results[i].Person != reversedMatch.Results[i].Person ||
			match.Results[i].LogCLR != reversedMatch.Results[i].LogCLR {
			t.Error("RankOne alignment", i, "failed")
		}
	}
}

func TestRankOneTieBreak(t *testing.T) {
	loci := testLoci("T0", "T1", "T2", "T3", "T4", "T5")
	ref := str.NewPopulation(loci)
	ref.Add(&str.Profile{ID: "kinB", Genotypes: repeatGenotype(str.FullGenotype(150, 160), 6)})
	ref.Add(&str.Profile{ID: "kinA", Genotypes: repeatGenotype(str.FullGenotype(150, 160), 6)})
	ranker := NewRanker(ref, freq.Build(ref), index.Build(ref), DefaultParams())
	qpop := str.NewPopulation(loci)
	q := &str.Profile{ID: "Q", Genotypes: repeatGenotype(str.FullGenotype(140, 150), 6)}
	qpop.Add(q)
	match := ranker.RankOne(q, qpop, index.NewPrefilter(len(ref.Profiles)))
	if len(match.Results) != 2 || match.Results[0].Person != "kinA" || match.Results[1].Person != "kinB" {
		t.Error("RankOne tie break failed")
	}
	if match.Results[0].LogCLR != match.Results[1].LogCLR {
		t.Error("RankOne tie log ratio failed")
	}
}

func TestSortResults(t *testing.T) {
	results := []Result{
		{Person: "d", Evidence: Evidence{LogCLR: 1, Direct: 9}},
		{Person: "c", Evidence: Evidence{LogCLR: 2, Direct: 2, Missing: 1}},
		{Person: "b", Evidence: Evidence{LogCLR: 2, Direct: 2}},
		{Person: "a", Evidence: Evidence{LogCLR: 2, Direct: 3}},
		{Person: "e", Evidence: Evidence{LogCLR: 2, Direct: 2}},
	}
	sortResults(results)
	want := []string{"a", "b", "e", "c", "d"}
	for i, person := range want {
		if results[i].Person != person {
			t.Error("sortResults", i, "failed")
		}
	}
}

func TestRankAll(t *testing.T) {
	ranker := makeFamilyRanker(DefaultParams())
	queries := str.NewPopulation(familyLoci())
	queries.Add(familyQuery())
	queries.Add(&str.Profile{ID: "QE", Genotypes: make([]str.Genotype, 10)})
	matches, err := ranker.RankAll(context.Background(), queries)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatal("RankAll match count failed")
	}
	if matches[0].Query != "Q" || len(matches[0].Results) == 0 || matches[0].Results[0].Person != "father" {
		t.Error("RankAll 1 failed")
	}
	if matches[1].Query != "QE" || matches[1].UsableLoci != 0 {
		t.Error("RankAll 2 failed")
	}
}

func TestRankAllCanceled(t *testing.T) {
	ranker := makeFamilyRanker(DefaultParams())
	queries := str.NewPopulation(familyLoci())
	queries.Add(familyQuery())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	matches, err := ranker.RankAll(ctx, queries)
	if matches != nil || err != context.Canceled {
		t.Error("RankAll cancellation failed")
	}
}
