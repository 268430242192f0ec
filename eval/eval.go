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

// Package eval writes and reads match results, and scores them
// against a ground truth of known relationships.
package eval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/strkinlab/strkin/internal"
	"github.com/strkinlab/strkin/kin"
	"github.com/strkinlab/strkin/str"
)

// ResultsHeader is the column line of a results CSV.
const ResultsHeader = "query,rank,person,clr,posterior,consistent,mutated,missing,inconsistent,flag"

// WriteResults writes the matches of all queries as a results CSV.
// Ranked candidates carry their rank and an empty flag; candidates
// that look like the same individual archived twice carry an empty
// rank and the flag same-individual. Queries without any candidate
// contribute no rows.
func WriteResults(w io.Writer, matches []kin.Match) error {
	if _, err := fmt.Fprintln(w, ResultsHeader); err != nil {
		return err
	}
	row := func(query, rank string, r *kin.Result, flag string) error {
		_, err := fmt.Fprintf(w, "%s,%s,%s,%s,%.6f,%d,%d,%d,%d,%s\n",
			query, rank, r.Person, kin.FormatCLR(r.LogCLR), r.Posterior,
			r.Consistent(), r.Mutated, r.Missing, r.Inconsistent, flag)
		return err
	}
	for m := range matches {
		match := &matches[m]
		for i := range match.Results {
			if err := row(match.Query, fmt.Sprint(i+1), &match.Results[i], ""); err != nil {
				return err
			}
		}
		for i := range match.SameIndividual {
			if err := row(match.Query, "", &match.SameIndividual[i], "same-individual"); err != nil {
				return err
			}
		}
	}
	return nil
}

// A Ranked is one ranked row of a results CSV, as far as scoring
// needs it.
type Ranked struct {
	Person    string
	Rank      int
	Posterior float64
}

const resultsColumns = 10

// ReadResults reads a results CSV back, keyed by query. Flagged rows
// are not relationship candidates and are left out.
func ReadResults(name string) (results map[string][]Ranked, err error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		nerr := file.Close()
		if err == nil {
			err = nerr
		}
	}()
	reader := bufio.NewReader(file)
	header, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	if strings.TrimRight(header, "\r\n") != ResultsHeader {
		return nil, fmt.Errorf("%v is not a results file", name)
	}
	results = make(map[string][]Ranked)
	var sc str.RecordScanner
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			sc.Reset(line)
			var cells [resultsColumns]string
			for i := range cells {
				cells[i] = sc.ParseCell()
			}
			if serr := sc.Err(); serr != nil {
				return nil, fmt.Errorf("%v in results record %v", serr, line)
			}
			if sc.Len() > 0 {
				return nil, fmt.Errorf("too many cells in results record %v", line)
			}
			if cells[9] == "" {
				results[cells[0]] = append(results[cells[0]], Ranked{
					Person:    cells[2],
					Rank:      int(internal.ParseInt(cells[1], 10, 32)),
					Posterior: internal.ParseFloat(cells[4], 64),
				})
			}
		}
		if err == io.EOF {
			return results, nil
		}
	}
}

// ReadTruth reads a two-column CSV of query identifier and true
// relative, skipping the header line.
func ReadTruth(name string) (truth map[string]string, err error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		nerr := file.Close()
		if err == nil {
			err = nerr
		}
	}()
	reader := bufio.NewReader(file)
	truth = make(map[string]string)
	var sc str.RecordScanner
	first := true
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			if first {
				first = false
			} else {
				sc.Reset(line)
				query := sc.ParseCell()
				person := sc.ParseCell()
				if serr := sc.Err(); serr != nil {
					return nil, fmt.Errorf("%v in truth record %v", serr, line)
				}
				if query == "" || person == "" || sc.Len() > 0 {
					return nil, fmt.Errorf("malformed truth record %v", line)
				}
				truth[query] = person
			}
		}
		if err == io.EOF {
			return truth, nil
		}
	}
}

// Metrics summarizes how well ranked results recover a ground
// truth. Rank statistics cover only the queries whose true relative
// showed up at all; accuracy and reciprocal rank average over every
// truth entry, so absent queries count as misses.
type Metrics struct {
	Queries            int
	Answered           int
	Found              int
	Top1Hits           int
	TopKHits           int
	Top1Accuracy       float64
	TopKAccuracy       float64
	MeanReciprocalRank float64
	MeanHitPosterior   float64
	RankMean           float64
	RankMedian         float64
}

// Score compares ranked results against the ground truth. A truth
// entry counts as a top-k hit when its true relative appears with
// rank at most k; k <= 0 disables the cutoff.
func Score(results map[string][]Ranked, truth map[string]string, k int) Metrics {
	var m Metrics
	var rrSum float64
	var ranks, posteriors []float64
	for query, want := range truth {
		m.Queries++
		rs := results[query]
		if len(rs) > 0 {
			m.Answered++
		}
		for _, r := range rs {
			if r.Person == want {
				rrSum += 1 / float64(r.Rank)
				if r.Rank == 1 {
					m.Top1Hits++
				}
				if k <= 0 || r.Rank <= k {
					m.TopKHits++
				}
				ranks = append(ranks, float64(r.Rank))
				posteriors = append(posteriors, r.Posterior)
				break
			}
		}
	}
	if m.Queries > 0 {
		m.Top1Accuracy = float64(m.Top1Hits) / float64(m.Queries)
		m.TopKAccuracy = float64(m.TopKHits) / float64(m.Queries)
		m.MeanReciprocalRank = rrSum / float64(m.Queries)
	}
	m.Found = len(ranks)
	if len(ranks) > 0 {
		sort.Float64s(ranks)
		m.RankMean = stat.Mean(ranks, nil)
		m.RankMedian = stat.Quantile(0.5, stat.Empirical, ranks, nil)
		m.MeanHitPosterior = stat.Mean(posteriors, nil)
	}
	return m
}
