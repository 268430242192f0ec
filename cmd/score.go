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

package cmd

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/strkinlab/strkin/eval"
)

// ScoreHelp is the help string for this command.
const ScoreHelp = "\nscore parameters:\n" +
	"strkin score results-file truth-file\n" +
	"[--top nr]\n" +
	"[--log-path path]\n"

// Score implements the strkin score command.
func Score() {
	var logPath string
	top := 10

	var flags flag.FlagSet

	flags.IntVar(&top, "top", top, "rank cutoff for top-k accuracy")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, ScoreHelp)

	results := getFilename(os.Args[2], ScoreHelp)
	truth := getFilename(os.Args[3], ScoreHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", results) {
		sanityChecksFailed = true
	}

	if !checkExist("", truth) {
		sanityChecksFailed = true
	}

	if !checkCount("--top", top) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, ScoreHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " score ", results, " ", truth)
	fmt.Fprint(&command, " --top ", top)
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	commandString := command.String()

	log.Println("Executing command:\n", commandString)

	resultRows, err := eval.ReadResults(results)
	if err != nil {
		log.Panic(err)
	}
	truthMap, err := eval.ReadTruth(truth)
	if err != nil {
		log.Panic(err)
	}

	metrics := eval.Score(resultRows, truthMap, top)

	log.Printf("Scored %v truth queries, %v answered with at least one candidate.", metrics.Queries, metrics.Answered)
	log.Printf("Top-1 accuracy: %v/%v = %.4f.", metrics.Top1Hits, metrics.Queries, metrics.Top1Accuracy)
	log.Printf("Top-%v accuracy: %v/%v = %.4f.", top, metrics.TopKHits, metrics.Queries, metrics.TopKAccuracy)
	log.Printf("Mean reciprocal rank: %.4f.", metrics.MeanReciprocalRank)
	if metrics.Found > 0 {
		log.Printf("True relatives found for %v queries at mean rank %.2f, median rank %v.", metrics.Found, metrics.RankMean, metrics.RankMedian)
		log.Printf("Mean posterior of found relatives: %.4f.", metrics.MeanHitPosterior)
	}
}
