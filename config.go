package streamkit

import (
	"github.com/sirupsen/logrus"
)

// Config holds configuration settings for the external sorter.
type Config struct {
	ChunkSizeBytes     int64              // serialized bytes to accumulate per chunk before spilling to disk
	TempDir            string             // empty for the platform default, ex: /tmp
	NumSortWorkers     int                // maximum number of workers sorting chunks in memory before spill
	ChanBuffSize       int                // buffer size for chunk hand-off between pipeline stages
	SortedChanBuffSize int                // buffer size for passing sorted records to the output
	Logger             logrus.FieldLogger // cleanup failures are logged here; nil for the standard logger
}

// DefaultConfig returns the default configuration used for any values
// not provided.
func DefaultConfig() *Config {
	return &Config{
		ChunkSizeBytes:     100 << 20, // 100MB
		NumSortWorkers:     4,
		ChanBuffSize:       1,
		SortedChanBuffSize: 10,
		Logger:             logrus.StandardLogger(),
	}
}

// mergeConfig takes a provided config and replaces any unset values
// with the defaults.
func mergeConfig(c *Config) *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.ChunkSizeBytes == 0 {
		out.ChunkSizeBytes = d.ChunkSizeBytes
	}
	if out.NumSortWorkers == 0 {
		out.NumSortWorkers = d.NumSortWorkers
	}
	if out.ChanBuffSize == 0 {
		out.ChanBuffSize = d.ChanBuffSize
	}
	if out.SortedChanBuffSize == 0 {
		out.SortedChanBuffSize = d.SortedChanBuffSize
	}
	if out.Logger == nil {
		out.Logger = logrus.StandardLogger()
	}
	return &out
}

// validateConfig rejects values that cannot be defaulted away.
func validateConfig(c *Config) error {
	if c.ChunkSizeBytes < 0 {
		return NewConfigurationError("ChunkSizeBytes", c.ChunkSizeBytes, "must be positive")
	}
	if c.NumSortWorkers < 0 {
		return NewConfigurationError("NumSortWorkers", c.NumSortWorkers, "must be positive")
	}
	if c.ChanBuffSize < 0 {
		return NewConfigurationError("ChanBuffSize", c.ChanBuffSize, "must not be negative")
	}
	if c.SortedChanBuffSize < 0 {
		return NewConfigurationError("SortedChanBuffSize", c.SortedChanBuffSize, "must not be negative")
	}
	return nil
}
