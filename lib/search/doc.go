// Package search contains the full text query DSL and the streaming result iterator.
//
// Queries, facets and params are JSON backed nodes. Every option can be set through a
// typed setter or by name with SetOption / ApplyOptions:
//
//	q := search.NewFuzzyQuery("someterm").SetFuzziness(12).SetField("field")
//	ps := search.NewParams().SetLimit(10).SetExplain(true)
//	body, err := search.MakeSearchBody("someIndex", q, ps)
//
// A SearchRequest issues the body through an Executor on its first iteration and
// yields one row per hit. Metadata (total hits, facets, ...) is available once the
// iteration finished.
package search
