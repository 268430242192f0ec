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
	"io/ioutil"
	"path/filepath"
	"testing"
)

const testCSV = "PersonID,D3S1358,vWA,FGA,TH01\n" +
	"P1,\"15,16\",14,\"22,24\",9.3\r\n" +
	"P2,\"15,17\",-,24,\"9.3,10\"\n" +
	"P3,15,\"14,-\",,bogus\n"

func writeTestFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(path, []byte(contents), 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

func populationsEqual(pop1, pop2 *Population) bool {
	if len(pop1.Loci) != len(pop2.Loci) || len(pop1.Profiles) != len(pop2.Profiles) {
		return false
	}
	for i, locus := range pop1.Loci {
		if locus != pop2.Loci[i] {
			return false
		}
	}
	for i, p1 := range pop1.Profiles {
		p2 := pop2.Profiles[i]
		if p1.ID != p2.ID || len(p1.Genotypes) != len(p2.Genotypes) {
			return false
		}
		for ord, g := range p1.Genotypes {
			if g != p2.Genotypes[ord] {
				return false
			}
		}
	}
	return true
}

func TestReadCSVPopulation(t *testing.T) {
	pop, err := ReadCSVPopulation(writeTestFile(t, "profiles.csv", testCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(pop.Loci) != 4 || *pop.Loci[0] != "D3S1358" || *pop.Loci[3] != "TH01" {
		t.Error("ReadCSVPopulation loci failed")
	}
	if len(pop.Profiles) != 3 {
		t.Fatal("ReadCSVPopulation profile count failed")
	}
	p1 := pop.ByID("P1")
	if p1 == nil ||
		p1.Genotypes[0] != FullGenotype(150, 160) ||
		p1.Genotypes[1] != FullGenotype(140, 140) ||
		p1.Genotypes[2] != FullGenotype(220, 240) ||
		p1.Genotypes[3] != FullGenotype(93, 93) {
		t.Error("ReadCSVPopulation P1 failed")
	}
	p2 := pop.ByID("P2")
	if p2 == nil ||
		p2.Genotypes[0] != FullGenotype(150, 170) ||
		p2.Genotypes[1].N != 0 ||
		p2.Genotypes[2] != FullGenotype(240, 240) ||
		p2.Genotypes[3] != FullGenotype(93, 100) {
		t.Error("ReadCSVPopulation P2 failed")
	}
	p3 := pop.ByID("P3")
	if p3 == nil ||
		p3.Genotypes[0] != FullGenotype(150, 150) ||
		p3.Genotypes[1] != SingleGenotype(140) ||
		p3.Genotypes[2].N != 0 ||
		p3.Genotypes[3].N != 0 {
		t.Error("ReadCSVPopulation P3 failed")
	}
}

func TestReadCSVPopulationShortRecord(t *testing.T) {
	pop, err := ReadCSVPopulation(writeTestFile(t, "short.csv", "PersonID,D3S1358,vWA,FGA\nP1,\"15,16\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	p1 := pop.Profiles[0]
	if p1.Genotypes[0] != FullGenotype(150, 160) || p1.Genotypes[1].N != 0 || p1.Genotypes[2].N != 0 {
		t.Error("ReadCSVPopulation short record failed")
	}
}

func TestReadCSVPopulationErrors(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"empty.csv", ""},
		{"dup.csv", "PersonID,vWA,vWA\n"},
		{"emptylocus.csv", "PersonID,,vWA\n"},
		{"long.csv", "PersonID,vWA\nP1,15,16\n"},
		{"noid.csv", "PersonID,vWA\n,15\n"},
		{"quote.csv", "PersonID,vWA\nP1,\"15,16\n"},
		{"quote2.csv", "PersonID,vWA\nP1,\"15\"x\n"},
	}
	for _, c := range cases {
		if _, err := ReadCSVPopulation(writeTestFile(t, c.name, c.contents)); err == nil {
			t.Error("ReadCSVPopulation error", c.name, "failed")
		}
	}
}

func TestCSVRoundTrip(t *testing.T) {
	pop, err := ReadCSVPopulation(writeTestFile(t, "profiles.csv", testCSV))
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"out.csv", "out.csv.gz", "out.csv.zst"} {
		path := filepath.Join(t.TempDir(), name)
		if err := WriteCSVPopulation(path, pop); err != nil {
			t.Fatal(err)
		}
		back, err := ReadCSVPopulation(path)
		if err != nil {
			t.Fatal(err)
		}
		if !populationsEqual(pop, back) {
			t.Error("CSV round trip", name, "failed")
		}
	}
}

func TestReadPopulationDispatch(t *testing.T) {
	pop, err := ReadPopulation(writeTestFile(t, "profiles.csv", testCSV))
	if err != nil {
		t.Fatal(err)
	}
	if len(pop.Profiles) != 3 {
		t.Error("ReadPopulation CSV dispatch failed")
	}
}
