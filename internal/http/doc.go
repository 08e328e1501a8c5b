// Package http executes user-defined API calls and measures them.
//
// An execution runs through three stages:
//   - Build turns a Descriptor into a wire request: enabled query parameters
//     and headers in order, content type defaulting, Accept-Encoding and the
//     Cookie header from the jar.
//   - The Dispatcher sends it over a dedicated HTTP/1.1 transport with
//     per-stage connect, write and read budgets, feeding a per-request
//     trace.Recorder through net/http/httptrace hooks.
//   - The response is normalized: lower-cased header multimap, Set-Cookie
//     values saved to the jar, gzip and br bodies decoded, stats attached.
//
// Basic Usage:
//
//	jar := cookies.NewStore(filepath.Join(dataDir, cookies.FileName))
//	engine := http.NewEngine(jar, http.WithLogger(logger))
//
//	result, err := engine.Execute(ctx, "list-users", http.Descriptor{
//	    Method: "get",
//	    URI:    "https://api.example.com/users",
//	    Query:  []http.KV{{Key: "limit", Value: "10", Enabled: true}},
//	}, http.Timeout{Connect: 5 * time.Second, Read: 30 * time.Second})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Status: %d, server processing: %dms\n", result.Status, result.Stats.ServerProcessing)
//
// Errors:
//
// Every error returned by Execute is an *apierror.Error. Redirects are not
// followed and nothing is retried.
//
// Thread Safety:
//
// Engine is safe for concurrent use. Each execution owns its transport and
// trace, and the cookie jar serializes its own access.
package http
