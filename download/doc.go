// Package download fetches remote resources to local files over
// unreliable links.
//
// # Single Download
//
// A transfer that stops making progress for longer than Request.Timeout
// is reconnected with a byte-range request from the current offset, as
// many times as it takes:
//
//	err := download.Download(ctx, download.Request{
//		URL:           "https://example.com/image.sif",
//		Dest:          "/data/image.sif",
//		Timeout:       30 * time.Second,
//		AllowContinue: true,
//		UseTmp:        true,
//		Checksum:      "sha256:...",
//	})
//
// # Methods
//
// Request.Method selects how the bytes are fetched: the internal HTTP
// transfer, or an external utility (wget by default) that a [Toolbox]
// finds on PATH or, for [MethodExternal], extracts from a container
// image with singularity, apptainer or docker. [MethodAuto] tries the
// external utility without bootstrapping, then the internal transfer,
// then the bootstrapped utility. When every method fails the error is
// a [*FallbackError] holding each attempt.
//
// # Batches
//
// [Batch] runs several downloads concurrently with an optional limit:
//
//	b := download.NewBatch(4)
//	for _, req := range reqs {
//		b.Go(ctx, d, req)
//	}
//	err := b.Wait()
package download
