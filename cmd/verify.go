package cmd

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abe-nagisa/zipstream/pkg/zipfile"
)

var verifyCmd = &cobra.Command{
	Use:   "verify ARCHIVE...",
	Short: "Decode every entry and check its CRC-32 and size",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		jobs, err := c.Flags().GetInt("jobs")
		if err != nil {
			return err
		}
		cfg := archiveConfig()
		g, ctx := errgroup.WithContext(c.Context())
		g.SetLimit(jobs)
		results := make([]int, len(args))
		for i, path := range args {
			i, path := i, path
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				n, err := verifyArchive(path, cfg)
				results[i] = n
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, path := range args {
			fmt.Fprintf(c.OutOrStdout(), "%s: %d entries OK\n", path, results[i])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().IntP("jobs", "j", 4, "archives verified in parallel")
}

// verifyArchive reads every entry of the archive at path to EOF. Each call
// owns its Archive.
func verifyArchive(path string, cfg zipfile.Config) (int, error) {
	a, err := zipfile.Open(path, zipfile.WithConfig(cfg))
	if err != nil {
		return 0, err
	}
	entries := a.Entries()
	for _, e := range entries {
		rc, err := a.Open(e.Name)
		if err != nil {
			return 0, err
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			return 0, errors.Wrapf(err, "%s", path)
		}
	}
	return len(entries), nil
}
