// Package xtra selects which XTRA mirror to download assistance data from.
//
// A Pool is built once from the GPS configuration keys XTRA_SERVER_1,
// XTRA_SERVER_2 and XTRA_SERVER_3. Each Download walks the servers starting
// at the pool's cursor, trying every server at most once, and stops at the
// first one that answers with data. The server that succeeded stays current
// for the next call.
//
//	pool := xtra.NewPool(props, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{}))
//	res := pool.Download(ctx)
//	if !res.OK() {
//	    // assistance data temporarily unavailable, carry on without it
//	}
//
// A pool with no servers is valid; every Download on it returns no data
// without touching the network.
package xtra
