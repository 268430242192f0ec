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

package eval

import (
	"bytes"
	"io/ioutil"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/strkinlab/strkin/kin"
)

func writeTestFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := ioutil.WriteFile(path, []byte(contents), 0666); err != nil {
		t.Fatal(err)
	}
	return path
}

func makeMatches() []kin.Match {
	return []kin.Match{
		{
			Query:      "Q1",
			UsableLoci: 10,
			Results: []kin.Result{
				{Person: "father", Evidence: kin.Evidence{LogCLR: math.Log(4), Direct: 10}, Posterior: 0.9375},
				{Person: "cousin", Evidence: kin.Evidence{Direct: 7, Mutated: 1, Missing: 2}, Posterior: 0.5},
			},
			SameIndividual: []kin.Result{
				{Person: "dup", Evidence: kin.Evidence{Identical: 10}, Posterior: 0.5},
			},
		},
		{Query: "Q2", UsableLoci: 9},
		{
			Query:      "Q3",
			UsableLoci: 10,
			Results: []kin.Result{
				{Person: "mother", Evidence: kin.Evidence{LogCLR: math.Log(4), Direct: 9, Inconsistent: 1}, Posterior: 0.8125},
			},
		},
	}
}

const wantResults = `query,rank,person,clr,posterior,consistent,mutated,missing,inconsistent,flag
Q1,1,father,4.0000e+0,0.937500,10,0,0,0,
Q1,2,cousin,1.0000e+0,0.500000,8,1,2,0,
Q1,,dup,1.0000e+0,0.500000,0,0,0,0,same-individual
Q3,1,mother,4.0000e+0,0.812500,9,0,0,1,
`

func TestWriteResults(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteResults(&buf, makeMatches()); err != nil {
		t.Fatal(err)
	}
	if buf.String() != wantResults {
		t.Error("WriteResults failed:", buf.String())
	}
}

func checkResults(t *testing.T, results map[string][]Ranked) {
	t.Helper()
	if len(results) != 2 {
		t.Fatal("results query count failed")
	}
	q1 := results["Q1"]
	if len(q1) != 2 ||
		q1[0] != (Ranked{Person: "father", Rank: 1, Posterior: 0.9375}) ||
		q1[1] != (Ranked{Person: "cousin", Rank: 2, Posterior: 0.5}) {
		t.Error("ReadResults 1 failed")
	}
	q3 := results["Q3"]
	if len(q3) != 1 || q3[0] != (Ranked{Person: "mother", Rank: 1, Posterior: 0.8125}) {
		t.Error("ReadResults 2 failed")
	}
}

func TestReadResults(t *testing.T) {
	results, err := ReadResults(writeTestFile(t, "results.csv", wantResults))
	if err != nil {
		t.Fatal(err)
	}
	checkResults(t, results)
	crlf := strings.ReplaceAll(wantResults, "\n", "\r\n") + "\r\n"
	results, err = ReadResults(writeTestFile(t, "crlf.csv", crlf))
	if err != nil {
		t.Fatal(err)
	}
	checkResults(t, results)
}

func TestReadResultsErrors(t *testing.T) {
	if _, err := ReadResults(writeTestFile(t, "bad.csv", "a,b,c\n")); err == nil {
		t.Error("ReadResults header error failed")
	}
	long := wantResults + "Q4,1,x,1.0000e+0,0.500000,1,0,0,0,,extra\n"
	if _, err := ReadResults(writeTestFile(t, "long.csv", long)); err == nil {
		t.Error("ReadResults long record error failed")
	}
	if _, err := ReadResults(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("ReadResults absent file error failed")
	}
}

func TestReadTruth(t *testing.T) {
	truth, err := ReadTruth(writeTestFile(t, "truth.csv",
		"query,person\nQ1,father\r\n\nQ2,mother\n\"Q3\",\"van Dyk\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(truth) != 3 || truth["Q1"] != "father" || truth["Q2"] != "mother" || truth["Q3"] != "van Dyk" {
		t.Error("ReadTruth failed")
	}
}

func TestReadTruthErrors(t *testing.T) {
	if _, err := ReadTruth(writeTestFile(t, "empty-person.csv", "query,person\nQ1,\n")); err == nil {
		t.Error("ReadTruth empty person error failed")
	}
	if _, err := ReadTruth(writeTestFile(t, "long.csv", "query,person\nQ1,father,extra\n")); err == nil {
		t.Error("ReadTruth long record error failed")
	}
	if _, err := ReadTruth(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Error("ReadTruth absent file error failed")
	}
}

func makeScoreFixture() (map[string][]Ranked, map[string]string) {
	results := map[string][]Ranked{
		"Q1": {{Person: "father", Rank: 1, Posterior: 0.9}, {Person: "stranger", Rank: 2, Posterior: 0.3}},
		"Q2": {{Person: "a", Rank: 1, Posterior: 0.95}, {Person: "b", Rank: 2, Posterior: 0.85}, {Person: "mother", Rank: 3, Posterior: 0.75}},
		"Q3": {{Person: "c", Rank: 1, Posterior: 0.9}},
	}
	truth := map[string]string{"Q1": "father", "Q2": "mother", "Q3": "uncle", "Q4": "nobody"}
	return results, truth
}

func TestScore(t *testing.T) {
	results, truth := makeScoreFixture()
	m := Score(results, truth, 10)
	if m.Queries != 4 || m.Answered != 3 || m.Found != 2 || m.Top1Hits != 1 || m.TopKHits != 2 {
		t.Error("Score counts failed")
	}
	if m.Top1Accuracy != 0.25 || m.TopKAccuracy != 0.5 {
		t.Error("Score accuracy failed")
	}
	if math.Abs(m.MeanReciprocalRank-1.0/3) > 1e-15 {
		t.Error("Score reciprocal rank failed")
	}
	if m.RankMean != 2 || m.RankMedian != 1 {
		t.Error("Score ranks failed")
	}
	if math.Abs(m.MeanHitPosterior-0.825) > 1e-12 {
		t.Error("Score posterior failed")
	}
}

func TestScoreCutoff(t *testing.T) {
	results, truth := makeScoreFixture()
	m := Score(results, truth, 2)
	if m.TopKHits != 1 || m.TopKAccuracy != 0.25 {
		t.Error("Score cutoff failed")
	}
	if m := Score(results, truth, 0); m.TopKHits != 2 {
		t.Error("Score without cutoff failed")
	}
}

func TestScoreEmptyTruth(t *testing.T) {
	results, _ := makeScoreFixture()
	if m := Score(results, map[string]string{}, 10); m != (Metrics{}) {
		t.Error("Score empty truth failed")
	}
}
