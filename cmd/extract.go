package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abe-nagisa/zipstream/pkg/zipfile"
)

var extractCmd = &cobra.Command{
	Use:   "extract ARCHIVE [ENTRY...]",
	Short: "Extract entries, all of them when none are named",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	f := extractCmd.Flags()
	f.StringP("dir", "d", ".", "destination directory")
	f.Bool("restore-permissions", false, "apply recorded permissions")
	f.Bool("restore-ownership", false, "apply recorded owner and group")
	f.Bool("restore-times", true, "apply recorded modification times")
	f.Bool("symlinks", false, "create symbolic links")
	for key, flag := range map[string]string{
		"restore_permissions": "restore-permissions",
		"restore_ownership":   "restore-ownership",
		"restore_times":       "restore-times",
		"symlinks":            "symlinks",
	} {
		cobra.CheckErr(viper.BindPFlag(key, f.Lookup(flag)))
	}
}

func runExtract(c *cobra.Command, args []string) error {
	dir, err := c.Flags().GetString("dir")
	if err != nil {
		return err
	}
	a, err := openArchive(args[0], false)
	if err != nil {
		return err
	}
	var names []string
	if len(args) > 1 {
		if names, err = entryNames(a, args[1:]); err != nil {
			return err
		}
	} else {
		for _, e := range a.Entries() {
			names = append(names, e.Name)
		}
	}
	for _, name := range names {
		if err := a.Extract(name, dir); err != nil {
			return err
		}
	}
	return nil
}

// entryNames expands names and glob patterns to entry names.
func entryNames(a *zipfile.Archive, patterns []string) ([]string, error) {
	var names []string
	for _, p := range patterns {
		if _, ok := a.Find(p); ok {
			names = append(names, p)
			continue
		}
		matches, err := a.Glob(p, zipfile.DefaultGlobFlags)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			_, err := a.Entry(p)
			return nil, err
		}
		for _, e := range matches {
			names = append(names, e.Name)
		}
	}
	return names, nil
}
