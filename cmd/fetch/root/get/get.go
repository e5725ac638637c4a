package get

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/adamwoolhether/fetch/download"
	"github.com/adamwoolhether/fetch/internal/cliutil"
)

func NewGetCmd() *cobra.Command {
	var (
		checksum string
		sidecar  bool
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "get <url> [dest]",
		Short: "Download a single file",
		Long: heredoc.Doc(`
			Download url to dest. When dest is omitted, or is an existing directory,
			the file is named after the last element of the URL path.
		`),
		Example: heredoc.Doc(`
			# Download into the current directory
			$ fetch get https://example.com/images/app.sif

			# Resume an interrupted download and verify it
			$ fetch get --continue --checksum sha256:9f86d08... https://example.com/app.sif /data/app.sif

			# Verify against the published <url>.md5 file
			$ fetch get --sidecar https://example.com/app.tar.gz
		`),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cliutil.Logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			req, err := cliutil.Defaults()
			if err != nil {
				return err
			}

			req.URL = args[0]
			req.Checksum = checksum
			req.ChecksumSidecar = sidecar

			var dest string
			if len(args) == 2 {
				dest = args[1]
			}
			req.Dest, err = Destination(req.URL, dest)
			if err != nil {
				return err
			}

			if !quiet {
				req.Callback = download.LogCallback(logger)
			}

			d, err := cliutil.NewDownloader(logger)
			if err != nil {
				return err
			}

			err = d.Download(cmd.Context(), req)
			err = errors.Join(err, d.Close())
			if err != nil {
				return err
			}

			fi, err := os.Stat(req.Dest)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", req.Dest, humanize.IBytes(uint64(fi.Size())))

			return nil
		},
	}

	cmd.Flags().StringVar(&checksum, "checksum", "", "Expected digest, optionally prefixed with md5:, sha1:, sha256: or sha512:")
	cmd.Flags().BoolVar(&sidecar, "sidecar", false, "Verify against the checksum published at <url>.md5")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not log progress")
	cmd.MarkFlagsMutuallyExclusive("checksum", "sidecar")

	return cmd
}

// Destination resolves where rawURL is saved. An empty dest or an
// existing directory takes the URL's file name.
func Destination(rawURL, dest string) (string, error) {
	if dest != "" {
		fi, err := os.Stat(dest)
		if err != nil || !fi.IsDir() {
			return dest, nil
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("cannot derive a file name from %q, pass a destination", rawURL)
	}

	return filepath.Join(dest, name), nil
}
