// Package root assembles the fetch command tree.
package root

import (
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/fetch/cmd/fetch/root/batch"
	"github.com/adamwoolhether/fetch/cmd/fetch/root/get"
	"github.com/adamwoolhether/fetch/cmd/fetch/root/version"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <command> [flags]",
		Short: "Resumable, stall-tolerant file downloader",
		Long: heredoc.Doc(`
			Download files over slow or unreliable links. Stalled transfers are
			reconnected from the current offset, partial files can be resumed, and
			checksums are verified before the destination is published.

			Flags may also be set with FETCH_* environment variables or in
			$HOME/.fetch.yaml.
		`),
		Example: heredoc.Doc(`
			$ fetch get https://example.com/image.sif
			$ fetch get --continue --checksum sha256:abc... https://example.com/data.tar.gz /data/
			$ fetch batch downloads.yaml --parallel 4
		`),
		SilenceUsage: true,
	}

	f := cmd.PersistentFlags()
	f.Duration("timeout", 30*time.Second, "Connect and per-read stall timeout")
	f.Bool("continue", false, "Resume a partial download from its current size")
	f.Bool("tmp", true, "Write to <dest>.part and rename on success")
	f.String("method", "auto", "Download method: auto, internal, external-tool, external-tool-no-fetch")
	f.Duration("interval", time.Second, "Minimum time between progress updates")
	f.String("rate-limit", "", "Maximum transfer rate per second, e.g. 512KiB or 10MB")
	f.Int("throttle-rps", 0, "Maximum HTTP requests per second, 0 for no limit")
	f.String("user-agent", "fetch/"+version.Version, "User-Agent header sent with requests")
	f.String("log-level", "info", "Log level: debug, info, warn, error")

	if err := viper.BindPFlags(f); err != nil {
		panic(err)
	}

	cmd.AddCommand(get.NewGetCmd())
	cmd.AddCommand(batch.NewBatchCmd())
	cmd.AddCommand(version.NewVersionCmd())

	return cmd
}
