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

// strkin matches forensic STR profiles against a reference
// population to find direct (parent-child) relatives, tolerating
// allele dropout and single-step repeat mutations.
//
// Please see https://github.com/strkinlab/strkin for a documentation
// of the tool, and below for the API documentation.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/strkinlab/strkin/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: match, score, csv-to-archive, archive-to-csv")
	fmt.Fprint(os.Stderr, "\n", cmd.MatchHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.ScoreHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.CsvToArchiveHelp)
	fmt.Fprint(os.Stderr, "\n", cmd.ArchiveToCsvHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprintln(os.Stderr, cmd.HelpMessage)
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "match":
		cmd.Match()
	case "score":
		cmd.Score()
	case "csv-to-archive":
		cmd.CsvToArchive()
	case "archive-to-csv":
		cmd.ArchiveToCsv()
	case "help", "-help", "--help", "-h", "--h":
		printHelp()
	default:
		log.Println("Unknown command: ", os.Args[1])
		printHelp()
		os.Exit(1)
	}
}
