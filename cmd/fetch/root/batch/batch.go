package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/fetch/download"
	"github.com/adamwoolhether/fetch/internal/cliutil"
)

// Manifest lists the downloads run by one batch.
type Manifest struct {
	Downloads []download.Request `yaml:"downloads"`
}

func NewBatchCmd() *cobra.Command {
	var (
		parallel int
		quiet    bool
	)

	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Download every file listed in a manifest",
		Long: heredoc.Doc(`
			Download the files listed in a YAML manifest concurrently. Relative
			destinations are resolved against the manifest's directory. Entries
			take their timeout, interval and method from the flags unless they set
			their own; --continue and --tmp apply to every entry.
		`),
		Example: heredoc.Doc(`
			$ cat downloads.yaml
			downloads:
			  - url: https://example.com/a.sif
			    dest: images/a.sif
			    checksum: sha256:9f86d08...
			  - url: https://example.com/b.tar.gz
			    dest: b.tar.gz
			    checksum_sidecar: true
			    method: internal

			$ fetch batch downloads.yaml --parallel 2
		`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cliutil.Logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defaults, err := cliutil.Defaults()
			if err != nil {
				return err
			}

			reqs, err := Load(args[0], defaults)
			if err != nil {
				return err
			}

			d, err := cliutil.NewDownloader(logger)
			if err != nil {
				return err
			}
			defer d.Close()

			b := download.NewBatch(parallel)
			for i := range reqs {
				if !quiet {
					reqs[i].Callback = download.LogCallback(logger.With("dest", reqs[i].Dest))
				}
				b.Go(cmd.Context(), d, reqs[i])
			}

			err = b.Wait()
			failed := countErrs(err)
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d/%d files\n", len(reqs)-failed, len(reqs))

			return err
		},
	}

	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "Maximum concurrent downloads, 0 for no limit")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not log progress")

	return cmd
}

// Load reads the manifest at path and fills unset fields from defaults.
func Load(path string, defaults download.Request) ([]download.Request, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	if len(m.Downloads) == 0 {
		return nil, fmt.Errorf("manifest %s lists no downloads", path)
	}

	base := filepath.Dir(path)
	for i := range m.Downloads {
		req := &m.Downloads[i]

		if req.Dest != "" && !filepath.IsAbs(req.Dest) {
			req.Dest = filepath.Join(base, req.Dest)
		}
		if req.Timeout == 0 {
			req.Timeout = defaults.Timeout
		}
		if req.CallbackInterval == 0 {
			req.CallbackInterval = defaults.CallbackInterval
		}
		if req.Method == download.MethodAuto {
			req.Method = defaults.Method
		}
		req.AllowContinue = req.AllowContinue || defaults.AllowContinue
		req.UseTmp = req.UseTmp || defaults.UseTmp

		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("download %d: %w", i+1, err)
		}
	}

	return m.Downloads, nil
}

func countErrs(err error) int {
	if err == nil {
		return 0
	}

	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		return len(joined.Unwrap())
	}

	return 1
}
