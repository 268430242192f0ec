// Package str is a library for parsing and representing STR
// (short tandem repeat) genotype profiles, and for loading large
// reference populations of such profiles into memory, taking
// advantage of modern multi-core processors.
//
// Profiles arrive as CSV files, one row per person, one column per
// locus, with allele repeat counts that may carry a single-decimal
// microvariant suffix (for example 9.3). Alleles are represented
// exactly, in integer tenths of a repeat unit, so equality and
// one-repeat-step comparisons never go through floating point.
// Malformed cells degrade the affected locus to a missing genotype
// instead of failing the profile.
//
// A loaded Population is immutable: the kinship matching stages in
// the freq, index, and kin packages only ever read from it, from any
// number of goroutines. CSV parsing itself runs as a pargo pipeline
// with a parallel parse stage. Prepared populations can also be
// stored in and loaded from a SQLite archive, which skips CSV
// parsing entirely on subsequent runs.
package str
