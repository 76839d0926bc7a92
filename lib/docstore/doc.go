// Package docstore implements an in-memory JSON document store.
//
// Documents are JSON objects or arrays addressed by key. Every write assigns a
// new cas (compare and swap) value taken from a monotonic counter. Writes may
// pass the cas they last saw; the write then fails with RetCKeyExists if the
// document changed in between.
//
// Sub-document commands (see package subdoc) address paths inside a document:
//
//	name          key of the root object
//	a.b[2].c      nested keys and array positions
//	tags[-1]      the last array element
//	`a.b`.c       keys containing dots are quoted with backticks
//
// MutateIn applies a batch of mutations atomically: if one command fails the
// document and its cas stay untouched.
//
// Search evaluates the JSON search body produced by package search against all
// documents of the store. Supported queries are the query string syntax, match,
// match_phrase, term (optionally fuzzy), prefix, regexp, wildcard, numeric and
// date ranges, conjunctions, disjunctions and boolean queries. Hits are scored,
// sorted and paged with size and from. Term, numeric range and date range
// facets are computed over all matching documents.
package docstore
