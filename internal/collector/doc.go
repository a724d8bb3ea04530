// Package collector drives arXiv retrieval: one listing page per category,
// filtered to a time window by the parser and written through the record
// store. It offers a bounded incremental update and a year-by-year
// backfill.
//
// Every category fetch is isolated. A transport fault, a non-success
// response or an undecodable payload fails that category only; the run
// moves on after observing the politeness delay. Each category attempt
// leaves exactly one fetch audit entry, with status "failed" and a zero
// count when the attempt failed.
//
// A Collector is not safe for concurrent runs. The store assumes a single
// writer and the service layer serializes collection requests.
package collector
