package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abe-nagisa/zipstream/pkg/zipfile"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zipstream",
	Short: "Read, modify and stream ZIP archives",
	Long: `zipstream lists, extracts and edits ZIP archives in place, splits them
into segments and streams entries out of remote archives with HTTP range
requests.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.zipstream.yaml)")
	pf.BoolP("verbose", "v", false, "log debug output to stderr")
	pf.String("password", "", "password for the traditional cipher")
	pf.Int("compression-level", zipfile.DefaultCompressionLevel, "compression level for new entries")
	pf.Bool("zip64", true, "reserve room for Zip64 records in streamed headers")
	pf.Bool("case-insensitive", false, "look up entry names without regard to case")
	pf.Bool("sort-entries", false, "list and write entries in name order")
	pf.Bool("overwrite", false, "replace existing entries and files")

	for key, flag := range map[string]string{
		"verbose":           "verbose",
		"password":          "password",
		"compression_level": "compression-level",
		"zip64":             "zip64",
		"case_insensitive":  "case-insensitive",
		"sort_entries":      "sort-entries",
		"overwrite":         "overwrite",
	} {
		cobra.CheckErr(viper.BindPFlag(key, pf.Lookup(flag)))
	}
	viper.SetDefault("restore_times", true)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".zipstream" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".zipstream")
	}

	viper.SetEnvPrefix("zipstream")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		logger().Debug("using config file", "path", viper.ConfigFileUsed())
	}
}

func logger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// archiveConfig builds the library configuration from flags, environment
// and config file.
func archiveConfig() zipfile.Config {
	cfg := zipfile.DefaultConfig()
	cfg.CompressionLevel = viper.GetInt("compression_level")
	cfg.Zip64 = viper.GetBool("zip64")
	cfg.CaseInsensitive = viper.GetBool("case_insensitive")
	cfg.SortEntries = viper.GetBool("sort_entries")
	cfg.Overwrite = viper.GetBool("overwrite")
	cfg.RestorePermissions = viper.GetBool("restore_permissions")
	cfg.RestoreOwnership = viper.GetBool("restore_ownership")
	cfg.RestoreTimes = viper.GetBool("restore_times")
	cfg.Symlinks = viper.GetBool("symlinks")
	cfg.Password = viper.GetString("password")
	cfg.Logger = logger()
	return cfg
}

func openArchive(path string, create bool) (*zipfile.Archive, error) {
	opts := []zipfile.Option{zipfile.WithConfig(archiveConfig())}
	if create {
		opts = append(opts, zipfile.WithCreate())
	}
	return zipfile.Open(path, opts...)
}

// modify opens the archive, applies fn and commits the result.
func modify(path string, create bool, fn func(a *zipfile.Archive) error) error {
	a, err := openArchive(path, create)
	if err != nil {
		return err
	}
	if err := fn(a); err != nil {
		a.Discard()
		return err
	}
	return a.Close()
}
