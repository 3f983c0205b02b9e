package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abe-nagisa/zipstream/pkg/zipfile"
)

var listCmd = &cobra.Command{
	Use:   "list ARCHIVE [PATTERN]",
	Short: "List the entries of an archive",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(c *cobra.Command, args []string) error {
	a, err := openArchive(args[0], false)
	if err != nil {
		return err
	}
	entries := a.Entries()
	if len(args) == 2 {
		if entries, err = a.Glob(args[1], zipfile.DefaultGlobFlags); err != nil {
			return err
		}
	}
	if err := printEntries(c.OutOrStdout(), entries); err != nil {
		return err
	}
	if a.Comment() != "" {
		fmt.Fprintln(c.OutOrStdout(), a.Comment())
	}
	return nil
}

func printEntries(out io.Writer, entries []*zipfile.Entry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	for _, e := range entries {
		method := "store"
		switch e.Method {
		case zipfile.Deflate:
			method = "defl"
		case zipfile.Zstd:
			method = "zstd"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%08x\t%s\t\n",
			e.Mode(), e.UncompressedSize64, e.CompressedSize64, method,
			e.Time().Format("2006-01-02 15:04"), e.CRC32, e.Name)
	}
	return w.Flush()
}
