// Package kin implements the core stages of kinship matching: the
// per-locus comparison of two genotypes, the aggregation of
// per-locus likelihood ratios into a combined likelihood ratio in
// log space, and the ranking of prefiltered candidates for a query
// profile.
//
// The likelihood model follows the standard duo paternity index. A
// shared allele contributes the reciprocal of its population
// frequency, halved when either genotype is homozygous; a one-step
// repeat mutation contributes a mutation-rate-damped version of the
// same; an outright exclusion contributes a small positive floor
// instead of zero, so that a single genotyping anomaly cannot erase
// otherwise strong evidence.
package kin
