package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abe-nagisa/zipstream/pkg/zipfile"
)

var splitCmd = &cobra.Command{
	Use:   "split ARCHIVE",
	Short: "Split an archive into .z01, .z02, ... and .zip segments",
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		f := c.Flags()
		size, err := f.GetInt64("size")
		if err != nil {
			return err
		}
		partial, err := f.GetString("partial")
		if err != nil {
			return err
		}
		del, err := f.GetBool("delete")
		if err != nil {
			return err
		}
		names, err := zipfile.Split(args[0], zipfile.SplitOptions{
			SegmentSize:    size,
			PartialName:    partial,
			DeleteOriginal: del,
			Logger:         logger(),
		})
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(c.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().Int64("size", zipfile.MaxSegmentSize, "segment size in bytes")
	splitCmd.Flags().String("partial", "", "segment path without extension (default: archive path without extension)")
	splitCmd.Flags().Bool("delete", false, "remove the archive after splitting")
}
