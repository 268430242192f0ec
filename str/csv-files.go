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
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/exascience/pargo/pipeline"
	"github.com/klauspost/compress/zstd"

	"github.com/strkinlab/strkin/internal"
	"github.com/strkinlab/strkin/utils"
)

const (
	minBatchSize = 1024
	maxBatchSize = 65536
)

type inputFile struct {
	file *os.File
	gz   *gzip.Reader
	zst  *zstd.Decoder
	*bufio.Reader
}

// openFile opens a profile CSV for reading, transparently
// decompressing .gz and .zst files.
func openFile(name string) (*inputFile, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(name) {
	case ".gz":
		gz, err := gzip.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		return &inputFile{file: file, gz: gz, Reader: bufio.NewReader(gz)}, nil
	case ".zst":
		zst, err := zstd.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		return &inputFile{file: file, zst: zst, Reader: bufio.NewReader(zst)}, nil
	default:
		return &inputFile{file: file, Reader: bufio.NewReader(file)}, nil
	}
}

func (f *inputFile) Close() error {
	if f.zst != nil {
		f.zst.Close()
	}
	if f.gz != nil {
		if err := f.gz.Close(); err != nil {
			_ = f.file.Close()
			return err
		}
	}
	return f.file.Close()
}

type outputFile struct {
	file *os.File
	gz   *gzip.Writer
	zst  *zstd.Encoder
	*bufio.Writer
}

// createFile creates a profile CSV for writing, transparently
// compressing .gz and .zst files.
func createFile(name string) (*outputFile, error) {
	file, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	switch filepath.Ext(name) {
	case ".gz":
		gz := gzip.NewWriter(file)
		return &outputFile{file: file, gz: gz, Writer: bufio.NewWriter(gz)}, nil
	case ".zst":
		zst, err := zstd.NewWriter(file)
		if err != nil {
			_ = file.Close()
			return nil, err
		}
		return &outputFile{file: file, zst: zst, Writer: bufio.NewWriter(zst)}, nil
	default:
		return &outputFile{file: file, Writer: bufio.NewWriter(file)}, nil
	}
}

func (f *outputFile) Close() error {
	err := f.Flush()
	if f.gz != nil {
		if nerr := f.gz.Close(); err == nil {
			err = nerr
		}
	}
	if f.zst != nil {
		if nerr := f.zst.Close(); err == nil {
			err = nerr
		}
	}
	if nerr := f.file.Close(); err == nil {
		err = nerr
	}
	return err
}

// readLine reads the next line, stripping the line terminator. It
// reports io.EOF only when no data was read at all.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// lineSource feeds batches of CSV record lines into a pargo
// pipeline. Every Fetch hands off a fresh batch, so downstream
// parallel stages never share slices with the source.
type lineSource struct {
	err    error
	reader *bufio.Reader
	data   []string
}

// Err implements the corresponding method of pipeline.Source
func (src *lineSource) Err() error {
	if src.err != io.EOF {
		return src.err
	}
	return nil
}

// Prepare implements the corresponding method of pipeline.Source
func (src *lineSource) Prepare(_ context.Context) (size int) {
	return -1
}

// Fetch implements the corresponding method of pipeline.Source
func (src *lineSource) Fetch(size int) (fetched int) {
	if src.err != nil {
		return 0
	}
	data := make([]string, 0, size)
	for len(data) < size {
		line, err := readLine(src.reader)
		if err != nil {
			src.err = err
			break
		}
		if line == "" {
			continue
		}
		data = append(data, line)
	}
	src.data = data
	return len(data)
}

// Data implements the corresponding method of pipeline.Source
func (src *lineSource) Data() interface{} {
	return src.data
}

// parseHeader turns the header line of a profile CSV into the locus
// table. The first column carries the person identifier and does not
// name a locus.
func parseHeader(header string) ([]utils.Symbol, error) {
	var sc RecordScanner
	sc.Reset(header)
	sc.ParseCell()
	var loci []utils.Symbol
	seen := make(map[utils.Symbol]bool)
	for sc.Len() > 0 {
		cell := strings.TrimSpace(sc.ParseCell())
		if cell == "" {
			return nil, fmt.Errorf("empty locus name in CSV header %v", header)
		}
		name := utils.Intern(cell)
		if seen[name] {
			return nil, fmt.Errorf("duplicate locus name %v in CSV header", cell)
		}
		seen[name] = true
		loci = append(loci, name)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return loci, nil
}

// parseRecord turns one CSV record line into a profile. Rows may
// have fewer cells than the header; the absent trailing loci come
// out as missing genotypes. The degraded count tells how many cells
// were malformed.
func parseRecord(sc *RecordScanner, line string, nLoci int) (*Profile, int, error) {
	sc.Reset(line)
	id := strings.TrimSpace(sc.ParseCell())
	if id == "" {
		return nil, 0, fmt.Errorf("missing person identifier in CSV record %v", line)
	}
	genotypes := make([]Genotype, nLoci)
	degraded := 0
	for ord := 0; ord < nLoci; ord++ {
		g, ok := ParseGenotype(sc.ParseCell())
		if !ok {
			degraded++
		}
		genotypes[ord] = g
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("%v in CSV record %v", err, line)
	}
	if sc.Len() > 0 {
		return nil, 0, fmt.Errorf("too many cells in CSV record %v", line)
	}
	return &Profile{ID: id, Genotypes: genotypes}, degraded, nil
}

type recordBatch struct {
	profiles []*Profile
	degraded int
}

// ReadCSVPopulation reads a full profile CSV into a population. The
// records are parsed by a parallel pipeline stage and appended in
// file order.
func ReadCSVPopulation(name string) (pop *Population, err error) {
	file, err := openFile(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		nerr := file.Close()
		if err == nil {
			err = nerr
		}
	}()
	header, err := readLine(file.Reader)
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("missing header in profile CSV %v", name)
		}
		return nil, err
	}
	loci, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	pop = NewPopulation(loci)
	degraded := 0
	var p pipeline.Pipeline
	p.Source(&lineSource{reader: file.Reader})
	p.SetVariableBatchSize(minBatchSize, maxBatchSize)
	p.Add(
		pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
			lines := data.([]string)
			batch := recordBatch{profiles: make([]*Profile, 0, len(lines))}
			var sc RecordScanner
			for _, line := range lines {
				profile, cells, err := parseRecord(&sc, line, len(pop.Loci))
				if err != nil {
					p.SetErr(fmt.Errorf("%v, while reading %v", err, name))
					return batch
				}
				batch.profiles = append(batch.profiles, profile)
				batch.degraded += cells
			}
			return batch
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			batch := data.(recordBatch)
			for _, profile := range batch.profiles {
				pop.Add(profile)
			}
			degraded += batch.degraded
			return data
		})),
	)
	p.Run()
	if err := p.Err(); err != nil {
		return nil, err
	}
	if degraded > 0 {
		log.Printf("Warning: %v malformed genotype cells degraded to missing while reading %v.", degraded, name)
	}
	return pop, nil
}

// formatRecord appends one profile CSV record to buf. Cells that
// contain a comma are quoted.
func formatRecord(buf []byte, profile *Profile) []byte {
	buf = append(buf, profile.ID...)
	for _, g := range profile.Genotypes {
		buf = append(buf, ',')
		cell := g.String()
		if strings.IndexByte(cell, ',') >= 0 {
			buf = append(append(append(buf, '"'), cell...), '"')
		} else {
			buf = append(buf, cell...)
		}
	}
	return append(buf, '\n')
}

// WriteCSVPopulation writes a population back out as a profile CSV,
// compressing when the file name asks for it.
func WriteCSVPopulation(name string, pop *Population) (err error) {
	file, err := createFile(name)
	if err != nil {
		return err
	}
	defer func() {
		nerr := file.Close()
		if err == nil {
			err = nerr
		}
	}()
	if _, err := file.WriteString("PersonID"); err != nil {
		return err
	}
	for _, name := range pop.Loci {
		if _, err := file.WriteString("," + *name); err != nil {
			return err
		}
	}
	if err := file.WriteByte('\n'); err != nil {
		return err
	}
	buf := internal.ReserveByteBuffer()
	defer internal.ReleaseByteBuffer(buf)
	for _, profile := range pop.Profiles {
		buf = formatRecord(buf, profile)
		if _, err := file.Write(buf); err != nil {
			return err
		}
		buf = buf[:0]
	}
	return nil
}

// ReadPopulation loads a reference population, from a SQLite archive
// when the file name points at one, and from CSV otherwise.
func ReadPopulation(name string) (*Population, error) {
	switch filepath.Ext(name) {
	case ".db", ".sqlite":
		pop, _, err := ReadArchive(name)
		return pop, err
	default:
		return ReadCSVPopulation(name)
	}
}
