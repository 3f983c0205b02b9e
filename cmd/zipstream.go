package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/abe-nagisa/zipstream/pkg/httprange"
	"github.com/abe-nagisa/zipstream/pkg/zipfile"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch --url URL [ENTRY...]",
	Short: "List or extract entries of a remote archive with HTTP range requests",
	RunE:  getStream,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	pf := fetchCmd.PersistentFlags()
	pf.String("url", "", "archive URL")
	pf.String("path", ".", "download location")
	pf.Int("parts", httprange.DefaultParts, "concurrent range requests per entry")
	pf.Bool("list", false, "list the entries only")
	cobra.CheckErr(fetchCmd.MarkPersistentFlagRequired("url"))
}

func getStream(c *cobra.Command, args []string) error {
	pf := c.PersistentFlags()
	url, err := pf.GetString("url")
	if err != nil {
		return err
	}
	path, err := pf.GetString("path")
	if err != nil {
		return err
	}
	parts, err := pf.GetInt("parts")
	if err != nil {
		return err
	}
	list, err := pf.GetBool("list")
	if err != nil {
		return err
	}

	cfg := archiveConfig()
	src, err := httprange.NewSource(c.Context(), url)
	if err != nil {
		return err
	}
	z, err := zipfile.NewReader(src, src.Size(), zipfile.WithConfig(cfg))
	if err != nil {
		return err
	}
	entries := z.Entries()
	if len(args) > 0 {
		entries = entries[:0]
		for _, name := range args {
			e, ok := z.Find(name)
			if !ok {
				return errors.Wrapf(zipfile.ErrEntryNotFound, "%q at %s", name, url)
			}
			entries = append(entries, e)
		}
	}
	if list {
		return printEntries(c.OutOrStdout(), entries)
	}

	// create download location
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	for _, e := range entries {
		if !e.NameSafe() {
			return errors.Wrapf(zipfile.ErrUnsafeName, "%q", e.Name)
		}
		dest := filepath.Join(path, filepath.FromSlash(e.Name))
		if e.IsDirectory() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := fetchEntry(c, src, z, e, dest, parts, cfg.Password); err != nil {
			return err
		}
		fmt.Fprintln(c.OutOrStdout(), dest)
	}
	return nil
}

// fetchEntry downloads the stored bytes of e in parts into a temporary file
// and decodes them to dest.
func fetchEntry(c *cobra.Command, src *httprange.Source, z *zipfile.Reader, e *zipfile.Entry, dest string, parts int, password string) error {
	off, err := z.DataOffset(e)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp("", "zipstream-fetch-*")
	if err != nil {
		return err
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()
	size := int64(e.CompressedSize64)
	if err := src.Download(c.Context(), tmp, off, size, parts); err != nil {
		return errors.Wrapf(err, "download %q", e.Name)
	}

	rc, err := zipfile.NewEntryReader(e, io.NewSectionReader(tmp, 0, size), password)
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	fp, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, e.Mode().Perm())
	if err != nil {
		return err
	}
	_, err = io.Copy(fp, rc)
	if cerr := fp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dest)
	}
	return err
}
