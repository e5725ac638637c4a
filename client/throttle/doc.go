// Package throttle limits how fast the downloader talks to a remote
// server, using token buckets from [golang.org/x/time/rate].
//
// # Request Throttling
//
// A transfer that keeps stalling reconnects with a fresh range request
// each time. Wrap the transport with [NewRoundTripper] to bound how
// often those requests may be issued:
//
//	rt, err := throttle.NewRoundTripper(
//		2, // requests per second
//		4, // burst capacity
//		func() *slog.Logger { return slog.Default() },
//		http.DefaultTransport,
//	)
//
// # Bandwidth
//
// [Bandwidth] caps the number of body bytes consumed per second:
//
//	bw, err := throttle.NewBandwidth(512 << 10)
//	err = bw.Wait(ctx, n)
package throttle
