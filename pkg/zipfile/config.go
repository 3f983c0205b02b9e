package zipfile

import (
	"io"
	"log/slog"
)

// Config holds the settings an Archive is constructed with.
type Config struct {
	// CompressionLevel is used for entries that do not set their own level.
	CompressionLevel int

	// Zip64 reserves room for Zip64 records in streamed local headers so
	// entries may grow past 4 GiB. Without it such entries fail to commit.
	Zip64 bool

	// CaseInsensitive folds entry names when looking them up.
	CaseInsensitive bool

	// SortEntries iterates and writes entries in name order.
	SortEntries bool

	// Overwrite lets Add, Rename and extraction replace existing targets.
	Overwrite bool

	// RestorePermissions applies recorded Unix permissions on extraction.
	RestorePermissions bool

	// RestoreOwnership applies recorded Unix owner and group on extraction.
	RestoreOwnership bool

	// RestoreTimes applies recorded modification times on extraction.
	RestoreTimes bool

	// Symlinks creates symbolic links on extraction; otherwise they are skipped.
	Symlinks bool

	// Password encrypts new entries with the traditional cipher and decrypts
	// encrypted ones.
	Password string

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns the settings used when no Config is given.
func DefaultConfig() Config {
	return Config{
		CompressionLevel: DefaultCompressionLevel,
		Zip64:            true,
		RestoreTimes:     true,
	}
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c.Logger
}

type options struct {
	cfg    Config
	create bool
}

// Option configures Open and NewReader.
type Option func(*options)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithCreate lets Open start a new archive when the file does not exist.
func WithCreate() Option {
	return func(o *options) {
		o.create = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.cfg.Logger = logger
	}
}

// WithPassword sets the traditional cipher password.
func WithPassword(password string) Option {
	return func(o *options) {
		o.cfg.Password = password
	}
}

// WithCompressionLevel sets the default compression level.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.cfg.CompressionLevel = level
	}
}

func buildOptions(opts []Option) options {
	o := options{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
