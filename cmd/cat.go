package cmd

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat ARCHIVE ENTRY...",
	Short: "Write the content of entries to stdout",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		a, err := openArchive(args[0], false)
		if err != nil {
			return err
		}
		for _, name := range args[1:] {
			rc, err := a.Open(name)
			if err != nil {
				return err
			}
			_, err = io.Copy(c.OutOrStdout(), rc)
			rc.Close()
			if err != nil {
				return errors.Wrapf(err, "cat %s", name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}
