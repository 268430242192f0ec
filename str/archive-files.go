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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/carbocation/pfx"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/strkinlab/strkin/internal"
	"github.com/strkinlab/strkin/utils"
)

// Profile archives are SQLite files. The loci and profiles tables
// mirror the in-memory population; genotypes are packed into one
// text column per person, with cells separated by semicolons. A full
// genotype is stored as "A,B" in allele tenths, a single-allele call
// as "A", and a missing genotype as the empty cell.
var archiveSchema = []string{
	"CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)",
	"CREATE TABLE loci (ord INTEGER PRIMARY KEY, name TEXT NOT NULL)",
	"CREATE TABLE profiles (ord INTEGER PRIMARY KEY, person TEXT NOT NULL, genotypes TEXT NOT NULL)",
}

func appendGenotype(buf []byte, g Genotype) []byte {
	switch g.N {
	case 2:
		buf = strconv.AppendInt(buf, int64(g.A), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(g.B), 10)
	case 1:
		buf = strconv.AppendInt(buf, int64(g.A), 10)
	}
	return buf
}

func encodeGenotypes(buf []byte, genotypes []Genotype) []byte {
	for ord, g := range genotypes {
		if ord > 0 {
			buf = append(buf, ';')
		}
		buf = appendGenotype(buf, g)
	}
	return buf
}

func decodeGenotypes(packed string, nLoci int) ([]Genotype, error) {
	genotypes := make([]Genotype, nLoci)
	if nLoci == 0 {
		if packed != "" {
			return nil, fmt.Errorf("stray genotype cells %v in archived profile", packed)
		}
		return genotypes, nil
	}
	cells := strings.Split(packed, ";")
	if len(cells) != nLoci {
		return nil, fmt.Errorf("wrong number of genotype cells (%v instead of %v) in archived profile", len(cells), nLoci)
	}
	for ord, cell := range cells {
		if cell == "" {
			continue
		}
		if comma := strings.IndexByte(cell, ','); comma >= 0 {
			a := Allele(internal.ParseInt(cell[:comma], 10, 32))
			b := Allele(internal.ParseInt(cell[comma+1:], 10, 32))
			genotypes[ord] = FullGenotype(a, b)
		} else {
			genotypes[ord] = SingleGenotype(Allele(internal.ParseInt(cell, 10, 32)))
		}
	}
	return genotypes, nil
}

func writeArchiveContents(tx *sqlx.Tx, pop *Population, source string) error {
	lociStmt, err := tx.Preparex("INSERT INTO loci (ord, name) VALUES (?, ?)")
	if err != nil {
		return err
	}
	for ord, name := range pop.Loci {
		if _, err := lociStmt.Exec(ord, *name); err != nil {
			return err
		}
	}
	profileStmt, err := tx.Preparex("INSERT INTO profiles (ord, person, genotypes) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	var buf []byte
	for ord, profile := range pop.Profiles {
		buf = encodeGenotypes(buf[:0], profile.Genotypes)
		if _, err := profileStmt.Exec(ord, profile.ID, string(buf)); err != nil {
			return err
		}
	}
	metaStmt, err := tx.Preparex("INSERT INTO meta (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	meta := [][2]string{
		{"archive_id", uuid.New().String()},
		{"created", time.Now().Format(time.RFC3339)},
		{"source", source},
		{"program", utils.ProgramName + " " + utils.ProgramVersion},
	}
	for _, entry := range meta {
		if _, err := metaStmt.Exec(entry[0], entry[1]); err != nil {
			return err
		}
	}
	return nil
}

// WriteArchive stores a population as a fresh SQLite archive,
// replacing any file already at that name. The source string records
// where the profiles came from.
func WriteArchive(name string, pop *Population, source string) (err error) {
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return pfx.Err(err)
	}
	db, err := sqlx.Connect("sqlite", "file:"+name)
	if err != nil {
		return pfx.Err(err)
	}
	defer func() {
		if nerr := db.Close(); err == nil && nerr != nil {
			err = pfx.Err(nerr)
		}
	}()
	for _, stmt := range archiveSchema {
		if _, err := db.Exec(stmt); err != nil {
			return pfx.Err(err)
		}
	}
	tx, err := db.Beginx()
	if err != nil {
		return pfx.Err(err)
	}
	if err := writeArchiveContents(tx, pop, source); err != nil {
		_ = tx.Rollback()
		return pfx.Err(err)
	}
	if err := tx.Commit(); err != nil {
		return pfx.Err(err)
	}
	return nil
}

type archivedProfile struct {
	Person    string `db:"person"`
	Genotypes string `db:"genotypes"`
}

type archivedMeta struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// ReadArchive loads a population from a SQLite archive, along with
// the meta entries recorded when it was written.
func ReadArchive(name string) (pop *Population, meta utils.StringMap, err error) {
	db, err := sqlx.Connect("sqlite", "file:"+name)
	if err != nil {
		return nil, nil, pfx.Err(err)
	}
	defer func() {
		if nerr := db.Close(); err == nil && nerr != nil {
			err = pfx.Err(nerr)
		}
	}()
	var metaRecords []archivedMeta
	if err := db.Select(&metaRecords, "SELECT key, value FROM meta"); err != nil {
		return nil, nil, pfx.Err(err)
	}
	meta = make(utils.StringMap, len(metaRecords))
	for _, record := range metaRecords {
		if !meta.SetUniqueEntry(record.Key, record.Value) {
			return nil, nil, fmt.Errorf("duplicate meta key %v in archive %v", record.Key, name)
		}
	}
	var names []string
	if err := db.Select(&names, "SELECT name FROM loci ORDER BY ord"); err != nil {
		return nil, nil, pfx.Err(err)
	}
	loci := make([]utils.Symbol, 0, len(names))
	seen := make(map[utils.Symbol]bool, len(names))
	for _, name := range names {
		locus := utils.Intern(name)
		if seen[locus] {
			return nil, nil, fmt.Errorf("duplicate locus name %v in archive", name)
		}
		seen[locus] = true
		loci = append(loci, locus)
	}
	var records []archivedProfile
	if err := db.Select(&records, "SELECT person, genotypes FROM profiles ORDER BY ord"); err != nil {
		return nil, nil, pfx.Err(err)
	}
	pop = NewPopulation(loci)
	for _, record := range records {
		genotypes, err := decodeGenotypes(record.Genotypes, len(loci))
		if err != nil {
			return nil, nil, fmt.Errorf("%v %v of archive %v", err, record.Person, name)
		}
		pop.Add(&Profile{ID: record.Person, Genotypes: genotypes})
	}
	return pop, meta, nil
}
