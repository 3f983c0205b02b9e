package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/abe-nagisa/zipstream/pkg/zipfile"
)

var addCmd = &cobra.Command{
	Use:   "add ARCHIVE PATH...",
	Short: "Add files and directories, creating the archive if needed",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAdd,
}

var rmCmd = &cobra.Command{
	Use:   "rm ARCHIVE ENTRY...",
	Short: "Remove entries",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		return modify(args[0], false, func(a *zipfile.Archive) error {
			names, err := entryNames(a, args[1:])
			if err != nil {
				return err
			}
			for _, name := range names {
				if err := a.Remove(name); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv ARCHIVE ENTRY NEWNAME",
	Short: "Rename an entry",
	Args:  cobra.ExactArgs(3),
	RunE: func(c *cobra.Command, args []string) error {
		return modify(args[0], false, func(a *zipfile.Archive) error {
			return a.Rename(args[1], args[2])
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir ARCHIVE NAME...",
	Short: "Add directory entries",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(c *cobra.Command, args []string) error {
		mode, err := c.Flags().GetString("mode")
		if err != nil {
			return err
		}
		perm, err := strconv.ParseUint(mode, 8, 32)
		if err != nil {
			return errors.Wrapf(err, "mode %q", mode)
		}
		return modify(args[0], true, func(a *zipfile.Archive) error {
			for _, name := range args[1:] {
				if err := a.Mkdir(name, os.FileMode(perm)); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var commentCmd = &cobra.Command{
	Use:   "comment ARCHIVE [ENTRY]",
	Short: "Print or set the archive or entry comment",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runComment,
}

func init() {
	rootCmd.AddCommand(addCmd, rmCmd, mvCmd, mkdirCmd, commentCmd)

	addCmd.Flags().Bool("store", false, "store without compression")
	addCmd.Flags().String("as", "", "entry name for a single PATH")
	mkdirCmd.Flags().String("mode", "755", "octal permissions")
	commentCmd.Flags().String("set", "", "new comment")
}

func runAdd(c *cobra.Command, args []string) error {
	store, err := c.Flags().GetBool("store")
	if err != nil {
		return err
	}
	as, err := c.Flags().GetString("as")
	if err != nil {
		return err
	}
	if as != "" && len(args) != 2 {
		return errors.New("--as needs exactly one PATH")
	}
	return modify(args[0], true, func(a *zipfile.Archive) error {
		add := a.Add
		if store {
			add = a.AddStored
		}
		for _, root := range args[1:] {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				name, err := entryName(root, path, as)
				if err != nil || name == "." {
					return err
				}
				return add(name, path)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func runComment(c *cobra.Command, args []string) error {
	set := c.Flags().Changed("set")
	comment, err := c.Flags().GetString("set")
	if err != nil {
		return err
	}
	if !set {
		a, err := openArchive(args[0], false)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			fmt.Fprintln(c.OutOrStdout(), a.Comment())
			return nil
		}
		e, err := a.Entry(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(c.OutOrStdout(), e.Comment)
		return nil
	}
	return modify(args[0], false, func(a *zipfile.Archive) error {
		if len(args) == 1 {
			a.SetComment(comment)
			return nil
		}
		e, err := a.Entry(args[1])
		if err != nil {
			return err
		}
		e.SetComment(comment)
		return nil
	})
}

// entryName names path, found while walking root. Names are relative to the
// parent of root, or to as when it is given.
func entryName(root, path, as string) (string, error) {
	if as == "" {
		rel, err := filepath.Rel(filepath.Dir(root), path)
		return filepath.ToSlash(rel), err
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return as, err
	}
	return as + "/" + filepath.ToSlash(rel), nil
}
