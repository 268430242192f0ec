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
	"fmt"
	"strings"
)

/*
A scanner to scan/parse ASCII strings representing lines in profile
CSV files. Cells may be double-quoted, which is how heterozygous
genotypes like "15,16" survive the comma cell separator.

The zero RecordScanner is valid and empty.
*/
type RecordScanner struct {
	index int
	data  string
	err   error
}

/*
Returns the error that occurred during scanning/parsing.
*/
func (sc *RecordScanner) Err() error {
	return sc.err
}

/*
Resets the scanner, and initializes it with the given string.
*/
func (sc *RecordScanner) Reset(s string) {
	sc.index = 0
	sc.data = s
	sc.err = nil
}

/*
Returns the number of ASCII characters that still need to be
scanned/parsed. Returns 0 if Err() would return a non-nil value.
*/
func (sc *RecordScanner) Len() int {
	if sc.err != nil {
		return 0
	}
	return len(sc.data) - sc.index
}

// ParseCell returns the next cell of the record, with any
// surrounding double quotes removed. A quoted cell must be followed
// by a comma or the end of the record, anything else sets the
// scanner error.
func (sc *RecordScanner) ParseCell() string {
	if sc.err != nil {
		return ""
	}
	if sc.index < len(sc.data) && sc.data[sc.index] == '"' {
		start := sc.index + 1
		for end := start; end < len(sc.data); end++ {
			if sc.data[end] != '"' {
				continue
			}
			cell := sc.data[start:end]
			switch {
			case end+1 == len(sc.data):
				sc.index = end + 1
			case sc.data[end+1] == ',':
				sc.index = end + 2
			default:
				sc.err = fmt.Errorf("unexpected character %q after closing quote in CSV record", sc.data[end+1])
				return ""
			}
			return cell
		}
		sc.err = fmt.Errorf("unterminated quote in CSV record %v", sc.data)
		return ""
	}
	start := sc.index
	for end := start; end < len(sc.data); end++ {
		if sc.data[end] == ',' {
			sc.index = end + 1
			return sc.data[start:end]
		}
	}
	sc.index = len(sc.data)
	return sc.data[start:]
}

// maxWholeRepeats bounds the whole part of an allele token. Real STR
// repeat counts stay well below 100.
const maxWholeRepeats = 1 << 20

// ParseAllele parses an allele token: a whole repeat count with an
// optional single-decimal microvariant suffix, like 14 or 9.3.
func ParseAllele(token string) (Allele, bool) {
	var whole int32
	i := 0
	for ; i < len(token); i++ {
		c := token[i]
		if c < '0' || c > '9' {
			break
		}
		whole = whole*10 + int32(c-'0')
		if whole > maxWholeRepeats {
			return 0, false
		}
	}
	if i == 0 {
		return 0, false
	}
	if i == len(token) {
		return Allele(whole * 10), true
	}
	if token[i] != '.' || i+2 != len(token) {
		return 0, false
	}
	frac := token[i+1]
	if frac < '0' || frac > '9' {
		return 0, false
	}
	return Allele(whole*10 + int32(frac-'0')), true
}

// ParseGenotype parses a genotype cell: "a,b" for heterozygous, "a"
// or "a,a" for homozygous, "a,-" or "-,a" for a single-allele
// dropout, and "-" or empty for missing. Malformed allele tokens
// degrade towards a missing genotype instead of failing; the second
// return value is false when that happened.
func ParseGenotype(cell string) (Genotype, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "-" {
		return Genotype{}, true
	}
	sep := strings.IndexByte(cell, ',')
	if sep < 0 {
		if a, ok := ParseAllele(cell); ok {
			return FullGenotype(a, a), true
		}
		return Genotype{}, false
	}
	first := strings.TrimSpace(cell[:sep])
	second := strings.TrimSpace(cell[sep+1:])
	if strings.IndexByte(second, ',') >= 0 {
		return Genotype{}, false
	}
	if first == "-" && second == "-" {
		return Genotype{}, true
	}
	if second == "-" {
		if a, ok := ParseAllele(first); ok {
			return SingleGenotype(a), true
		}
		return Genotype{}, false
	}
	if first == "-" {
		if b, ok := ParseAllele(second); ok {
			return SingleGenotype(b), true
		}
		return Genotype{}, false
	}
	a, aok := ParseAllele(first)
	b, bok := ParseAllele(second)
	switch {
	case aok && bok:
		return FullGenotype(a, b), true
	case aok:
		return SingleGenotype(a), false
	case bok:
		return SingleGenotype(b), false
	default:
		return Genotype{}, false
	}
}
