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
	"bufio"
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/strkinlab/strkin/eval"
	"github.com/strkinlab/strkin/freq"
	"github.com/strkinlab/strkin/index"
	"github.com/strkinlab/strkin/internal"
	"github.com/strkinlab/strkin/kin"
	"github.com/strkinlab/strkin/str"
)

// MatchHelp is the help string for this command.
const MatchHelp = "\nmatch parameters:\n" +
	"strkin match reference-file query-file\n" +
	"[--output file]\n" +
	"[--hwe-report file]\n" +
	"[--mutation-rate rate]\n" +
	"[--lr-floor lr]\n" +
	"[--min-shared-loci nr]\n" +
	"[--min-direct-loci nr]\n" +
	"[--max-inconsistent-loci nr]\n" +
	"[--top nr]\n" +
	"[--prior probability]\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// Match implements the strkin match command.
func Match() {
	var (
		output, hweReport, profile, logPath string
		nrOfThreads                         int
		timed                               bool
	)

	par := kin.DefaultParams()

	var flags flag.FlagSet

	flags.StringVar(&output, "output", "", "write results to the specified file instead of standard output")
	flags.StringVar(&hweReport, "hwe-report", "", "write a Hardy-Weinberg equilibrium report for the reference loci")
	flags.Float64Var(&par.MutationRate, "mutation-rate", par.MutationRate, "per-locus probability of a one-step repeat mutation")
	flags.Float64Var(&par.InconsistentLR, "lr-floor", par.InconsistentLR, "likelihood ratio of an excluding locus")
	flags.IntVar(&par.MinSharedLoci, "min-shared-loci", par.MinSharedLoci, "loci a candidate must share with the query, 0 for half the usable loci")
	flags.IntVar(&par.MinDirectLoci, "min-direct-loci", par.MinDirectLoci, "consistent non-identical loci required for a relationship")
	flags.IntVar(&par.MaxInconsistentLoci, "max-inconsistent-loci", par.MaxInconsistentLoci, "excluding loci beyond which a candidate is dropped")
	flags.IntVar(&par.TopK, "top", par.TopK, "number of ranked candidates per query")
	flags.Float64Var(&par.Prior, "prior", par.Prior, "prior probability of the relationship")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, MatchHelp)

	ref := getFilename(os.Args[2], MatchHelp)
	queries := getFilename(os.Args[3], MatchHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", ref) {
		sanityChecksFailed = true
	}

	if !checkExist("", queries) {
		sanityChecksFailed = true
	}

	if output != "" && !checkCreate("--output", output) {
		sanityChecksFailed = true
	}

	if hweReport != "" && !checkCreate("--hwe-report", hweReport) {
		sanityChecksFailed = true
	}

	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	if !checkRate("--mutation-rate", par.MutationRate) {
		sanityChecksFailed = true
	}

	if !checkRate("--lr-floor", par.InconsistentLR) {
		sanityChecksFailed = true
	}

	if !checkRate("--prior", par.Prior) {
		sanityChecksFailed = true
	}

	if !checkCount("--min-shared-loci", par.MinSharedLoci) {
		sanityChecksFailed = true
	}

	if !checkCount("--min-direct-loci", par.MinDirectLoci) {
		sanityChecksFailed = true
	}

	if !checkCount("--max-inconsistent-loci", par.MaxInconsistentLoci) {
		sanityChecksFailed = true
	}

	if !checkCount("--top", par.TopK) {
		sanityChecksFailed = true
	}

	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, MatchHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " match ", ref, " ", queries)
	if output != "" {
		fmt.Fprint(&command, " --output ", output)
	}
	if hweReport != "" {
		fmt.Fprint(&command, " --hwe-report ", hweReport)
	}
	fmt.Fprint(&command, " --mutation-rate ", par.MutationRate)
	fmt.Fprint(&command, " --lr-floor ", par.InconsistentLR)
	if par.MinSharedLoci > 0 {
		fmt.Fprint(&command, " --min-shared-loci ", par.MinSharedLoci)
	}
	fmt.Fprint(&command, " --min-direct-loci ", par.MinDirectLoci)
	fmt.Fprint(&command, " --max-inconsistent-loci ", par.MaxInconsistentLoci)
	fmt.Fprint(&command, " --top ", par.TopK)
	fmt.Fprint(&command, " --prior ", par.Prior)
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed ")
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	commandString := command.String()

	log.Println("Executing command:\n", commandString)

	var refPop *str.Population
	timedRun(timed, profile, "Loading reference profiles.", 1, func() {
		var err error
		refPop, err = str.ReadPopulation(ref)
		if err != nil {
			log.Panic(err)
		}
	})

	log.Println("Loaded", len(refPop.Profiles), "reference profiles over", len(refPop.Loci), "loci.")

	var freqs *freq.Table
	timedRun(timed, profile, "Building allele frequency table.", 2, func() {
		freqs = freq.Build(refPop)
	})

	if hweReport != "" {
		timedRun(timed, profile, "Testing loci for Hardy-Weinberg equilibrium.", 3, func() {
			if err := freq.WriteHWEReport(hweReport, freq.HWEReport(refPop, freqs)); err != nil {
				log.Panic(err)
			}
		})
	}

	var idx *index.Index
	timedRun(timed, profile, "Building allele index.", 4, func() {
		idx = index.Build(refPop)
	})

	var queryPop *str.Population
	timedRun(timed, profile, "Loading query profiles.", 5, func() {
		var err error
		queryPop, err = str.ReadPopulation(queries)
		if err != nil {
			log.Panic(err)
		}
	})

	var matches []kin.Match
	timedRun(timed, profile, "Matching queries against the reference.", 6, func() {
		ranker := kin.NewRanker(refPop, freqs, idx, par)
		var err error
		matches, err = ranker.RankAll(context.Background(), queryPop)
		if err != nil {
			log.Panic(err)
		}
	})

	timedRun(timed, profile, "Writing results.", 7, func() {
		w := bufio.NewWriter(os.Stdout)
		if output != "" {
			file := internal.FileCreate(output)
			defer internal.Close(file)
			w = bufio.NewWriter(file)
		}
		if err := eval.WriteResults(w, matches); err != nil {
			log.Panic(err)
		}
		if err := w.Flush(); err != nil {
			log.Panic(err)
		}
	})

	ranked, flagged := 0, 0
	for m := range matches {
		ranked += len(matches[m].Results)
		flagged += len(matches[m].SameIndividual)
	}
	log.Println("Matched", len(queryPop.Profiles), "queries:", ranked, "ranked candidates,", flagged, "flagged as same individual.")
}
