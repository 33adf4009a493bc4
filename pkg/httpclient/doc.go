// Package httpclient builds the *http.Client every herald component shares.
//
// The client carries:
//   - A total per-request timeout (default 30s, longer than the long-poll
//     wait hint so a held poll request settles normally)
//   - A fixed client identifier in the User-Agent header
//   - Correlation ID propagation from the request context
//   - Request logging with sanitized URLs: the long-poll key and any
//     access token in the query string are redacted
//   - TLS 1.2 minimum and bounded connection pooling
//
// There is deliberately no retry layer here. Recovery belongs to the
// callers: the API client retries exactly one remote error class and the
// long-poll session re-acquires its server after a transport failure.
//
//	cfg := httpclient.DefaultConfig()
//	cfg.UserAgent = "herald/1.0"
//	client, err := httpclient.New(cfg)
package httpclient
