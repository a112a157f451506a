// Package ingest turns raw transaction-management CSV exports into typed
// deal records.
//
// Export tools (dotloop, Skyslope, MLS back-offices) disagree on everything:
// column labels, quoting, field counts, even whether a header row exists.
// This package tolerates all of it. The pipeline is:
//
//	raw text -> tokenizer -> headerless detection -> header matching
//	         -> reconciliation (user overrides) -> record building
//
// Header matching scores each raw header against the canonical deal schema
// and flags low-confidence columns for user review. A Session collects the
// user's corrections; once confirmed, a RecordIterator produces one
// DomainRecord per data row with tolerant per-cell coercion.
//
// This package has no UI, network, or storage dependencies and can be used
// by any frontend.
package ingest
