// Package client provides the HTTP layer used by the downloader,
// built on [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithUserAgent("fetch/1.0"),
//		client.WithThrottle(2, 4),
//	)
//
// # Probing and Ranged Reads
//
// [Client.Probe] issues a HEAD request and reports the advertised size.
// [Client.Get] opens the body, optionally from a byte offset:
//
//	meta, err := c.Probe(ctx, rawURL)
//	resp, err := c.Get(ctx, rawURL, 4000, meta.Size)
//	defer resp.Body.Close()
//
// Statuses other than 200, or 206 for ranged requests, are returned as
// [UnexpectedStatusError].
//
// # Checksum Sidecars
//
// [Client.Checksum] reads the first token of a sidecar such as the one
// at [SidecarURL]:
//
//	sum, err := c.Checksum(ctx, client.SidecarURL(rawURL))
package client
