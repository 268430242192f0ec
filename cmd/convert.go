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
	"runtime"

	"github.com/strkinlab/strkin/str"
)

// CsvToArchiveHelp is the help string for this command.
const CsvToArchiveHelp = "\ncsv-to-archive parameters:\n" +
	"strkin csv-to-archive csv-input-file archive-output-file\n" +
	"[--nr-of-threads nr]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// ArchiveToCsvHelp is the help string for this command.
const ArchiveToCsvHelp = "\narchive-to-csv parameters:\n" +
	"strkin archive-to-csv archive-input-file csv-output-file\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// CsvToArchive implements the strkin csv-to-archive command.
func CsvToArchive() {
	var (
		profile, logPath string
		nrOfThreads      int
		timed            bool
	)

	var flags flag.FlagSet

	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, CsvToArchiveHelp)

	input := getFilename(os.Args[2], CsvToArchiveHelp)
	output := getFilename(os.Args[3], CsvToArchiveHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}

	if !checkCreate("", output) {
		sanityChecksFailed = true
	}

	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, CsvToArchiveHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " csv-to-archive ", input, " ", output)
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

	var pop *str.Population
	timedRun(timed, profile, "Reading profile CSV.", 1, func() {
		var err error
		pop, err = str.ReadCSVPopulation(input)
		if err != nil {
			log.Panic(err)
		}
	})

	timedRun(timed, profile, "Writing profile archive.", 2, func() {
		if err := str.WriteArchive(output, pop, input); err != nil {
			log.Panic(err)
		}
	})

	log.Println("Archived", len(pop.Profiles), "profiles over", len(pop.Loci), "loci.")
}

// ArchiveToCsv implements the strkin archive-to-csv command.
func ArchiveToCsv() {
	var (
		profile, logPath string
		timed            bool
	)

	var flags flag.FlagSet

	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, ArchiveToCsvHelp)

	input := getFilename(os.Args[2], ArchiveToCsvHelp)
	output := getFilename(os.Args[3], ArchiveToCsvHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}

	if !checkCreate("", output) {
		sanityChecksFailed = true
	}

	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, ArchiveToCsvHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " archive-to-csv ", input, " ", output)
	if timed {
		fmt.Fprint(&command, " --timed ")
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	commandString := command.String()

	log.Println("Executing command:\n", commandString)

	var pop *str.Population
	timedRun(timed, profile, "Reading profile archive.", 1, func() {
		var err error
		var meta map[string]string
		pop, meta, err = str.ReadArchive(input)
		if err != nil {
			log.Panic(err)
		}
		if id, ok := meta["archive_id"]; ok {
			log.Println("Archive id:", id, "created:", meta["created"], "source:", meta["source"])
		}
	})

	timedRun(timed, profile, "Writing profile CSV.", 2, func() {
		if err := str.WriteCSVPopulation(output, pop); err != nil {
			log.Panic(err)
		}
	})

	log.Println("Exported", len(pop.Profiles), "profiles over", len(pop.Loci), "loci.")
}
