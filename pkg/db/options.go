package db

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
)

const (
	MiB = 1024 * 1024

	DefaultWriteBufferSize                = 64 * MiB
	DefaultMaxWriteBufferNumber           = 3
	DefaultTargetFileSizeBase             = 64 * MiB
	DefaultMaxBackgroundCompactions       = 4
	DefaultLevel0FileNumCompactionTrigger = 8
	DefaultLevel0SlowdownWritesTrigger    = 17
	DefaultLevel0StopWritesTrigger        = 24
	DefaultNumLevels                      = 4
	DefaultMaxBytesForLevelBase           = 512 * MiB
	DefaultMaxBytesForLevelMultiplier     = 8
	DefaultMaxOpenFiles                   = -1
)

// DefaultConfig documents the TOML form accepted by LoadOptions. Omitted keys
// keep their defaults.
const DefaultConfig = `
create-if-missing = true
max-open-files = -1

# memtable
write-buffer-size = 67108864
max-write-buffer-number = 3

# compaction
target-file-size-base = 67108864
max-background-compactions = 4
level0-file-num-compaction-trigger = 8
level0-slowdown-writes-trigger = 17
level0-stop-writes-trigger = 24

# level sizing
num-levels = 4
max-bytes-for-level-base = 536870912
max-bytes-for-level-multiplier = 8
`

var ErrInvalidOptions = errors.New("kv-store: invalid options")

// Options is the fixed tuning set an engine is opened with. It is decided at
// open time and never changes for the life of a store. Engines map the fields
// they have an equivalent for and ignore the rest.
type Options struct {
	// ReadOnly is decided by the caller per open, never by configuration.
	ReadOnly bool `toml:"-"`

	CreateIfMissing bool `toml:"create-if-missing"`
	MaxOpenFiles    int  `toml:"max-open-files"`

	WriteBufferSize      int64 `toml:"write-buffer-size"`
	MaxWriteBufferNumber int   `toml:"max-write-buffer-number"`

	TargetFileSizeBase             int64 `toml:"target-file-size-base"`
	MaxBackgroundCompactions       int   `toml:"max-background-compactions"`
	Level0FileNumCompactionTrigger int   `toml:"level0-file-num-compaction-trigger"`
	Level0SlowdownWritesTrigger    int   `toml:"level0-slowdown-writes-trigger"`
	Level0StopWritesTrigger        int   `toml:"level0-stop-writes-trigger"`

	NumLevels                  int   `toml:"num-levels"`
	MaxBytesForLevelBase       int64 `toml:"max-bytes-for-level-base"`
	MaxBytesForLevelMultiplier int   `toml:"max-bytes-for-level-multiplier"`
}

func DefaultOptions() Options {
	return Options{
		CreateIfMissing:                true,
		MaxOpenFiles:                   DefaultMaxOpenFiles,
		WriteBufferSize:                DefaultWriteBufferSize,
		MaxWriteBufferNumber:           DefaultMaxWriteBufferNumber,
		TargetFileSizeBase:             DefaultTargetFileSizeBase,
		MaxBackgroundCompactions:       DefaultMaxBackgroundCompactions,
		Level0FileNumCompactionTrigger: DefaultLevel0FileNumCompactionTrigger,
		Level0SlowdownWritesTrigger:    DefaultLevel0SlowdownWritesTrigger,
		Level0StopWritesTrigger:        DefaultLevel0StopWritesTrigger,
		NumLevels:                      DefaultNumLevels,
		MaxBytesForLevelBase:           DefaultMaxBytesForLevelBase,
		MaxBytesForLevelMultiplier:     DefaultMaxBytesForLevelMultiplier,
	}
}

// LoadOptions reads a TOML file on top of DefaultOptions.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if _, err := toml.DecodeFile(path, &opts); err != nil {
		return Options{}, fmt.Errorf("decode options %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// ParseOptions is LoadOptions for an in-memory document.
func ParseOptions(data string) (Options, error) {
	opts := DefaultOptions()
	if _, err := toml.Decode(data, &opts); err != nil {
		return Options{}, fmt.Errorf("decode options: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func (o Options) Validate() error {
	switch {
	case o.WriteBufferSize <= 0:
		return fmt.Errorf("%w: write-buffer-size must be positive", ErrInvalidOptions)
	case o.MaxWriteBufferNumber < 1:
		return fmt.Errorf("%w: max-write-buffer-number must be at least 1", ErrInvalidOptions)
	case o.TargetFileSizeBase <= 0:
		return fmt.Errorf("%w: target-file-size-base must be positive", ErrInvalidOptions)
	case o.MaxBackgroundCompactions < 1:
		return fmt.Errorf("%w: max-background-compactions must be at least 1", ErrInvalidOptions)
	case o.Level0FileNumCompactionTrigger < 1:
		return fmt.Errorf("%w: level0-file-num-compaction-trigger must be at least 1", ErrInvalidOptions)
	case o.Level0SlowdownWritesTrigger < o.Level0FileNumCompactionTrigger:
		return fmt.Errorf("%w: level0 slowdown trigger below compaction trigger", ErrInvalidOptions)
	case o.Level0StopWritesTrigger < o.Level0SlowdownWritesTrigger:
		return fmt.Errorf("%w: level0 stop trigger below slowdown trigger", ErrInvalidOptions)
	case o.NumLevels < 1:
		return fmt.Errorf("%w: num-levels must be at least 1", ErrInvalidOptions)
	case o.MaxBytesForLevelBase <= 0:
		return fmt.Errorf("%w: max-bytes-for-level-base must be positive", ErrInvalidOptions)
	case o.MaxBytesForLevelMultiplier < 1:
		return fmt.Errorf("%w: max-bytes-for-level-multiplier must be at least 1", ErrInvalidOptions)
	}
	return nil
}
