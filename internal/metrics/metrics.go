// Package metrics provides application-level counters using stdlib expvar.
// A binary that serves expvar's handler exposes them on /debug/vars.
package metrics

import "expvar"

// Operation counters.
var (
	FetchTotal   = expvar.NewInt("catmaid_fetch_total")
	CacheHits    = expvar.NewInt("catmaid_cache_hits_total")
	CacheMisses  = expvar.NewInt("catmaid_cache_misses_total")
	RefreshTotal = expvar.NewInt("catmaid_refresh_total")
	GraphExports = expvar.NewInt("catmaid_graph_exports_total")
	ResolveTotal = expvar.NewInt("catmaid_resolve_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
