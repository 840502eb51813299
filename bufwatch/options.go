package bufwatch

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// Option configures a Bridge.
type Option interface {
	apply(*config) error
}

type config struct {
	selfName       string
	maxBufferBytes uint64
	viewerAddress  string
	errorLogger    func(err error)
	skipLogger     func(name string, err error)
}

const (
	defaultSelfName      = "this"
	defaultViewerAddress = "127.0.0.1:9713"

	ENV_SELF_NAME        = "BUFWATCH_SELF_NAME"
	ENV_MAX_BUFFER_BYTES = "BUFWATCH_MAX_BUFFER_BYTES"
	ENV_VIEWER_ADDR      = "BUFWATCH_VIEWER_ADDR"
)

func makeDefaultConfig() (config, error) {
	cfg := config{
		selfName:      defaultSelfName,
		viewerAddress: defaultViewerAddress,
		errorLogger:   func(err error) {},
		skipLogger:    func(string, error) {},
	}
	if v := os.Getenv(ENV_SELF_NAME); v != "" {
		cfg.selfName = v
	}
	if v := os.Getenv(ENV_MAX_BUFFER_BYTES); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return config{}, fmt.Errorf("failed to parse %s: %w", ENV_MAX_BUFFER_BYTES, err)
		}
		cfg.maxBufferBytes = n
	}
	if v := os.Getenv(ENV_VIEWER_ADDR); v != "" {
		cfg.viewerAddress = v
	}
	return cfg, nil
}

type optionFunc func(cfg *config)

func (f optionFunc) apply(cfg *config) error {
	f(cfg)
	return nil
}

// WithSelfName sets the name of the implicit object argument whose fields
// are searched for buffers. Defaults to "this", or BUFWATCH_SELF_NAME.
func WithSelfName(name string) Option {
	return optionFunc(func(cfg *config) {
		cfg.selfName = name
	})
}

// WithMaxBufferBytes rejects buffers larger than n bytes, on top of the free
// memory check. Zero disables the limit. Defaults to BUFWATCH_MAX_BUFFER_BYTES.
func WithMaxBufferBytes(n uint64) Option {
	return optionFunc(func(cfg *config) {
		cfg.maxBufferBytes = n
	})
}

// WithViewerAddress sets the address ListenViewer listens on. Defaults to
// BUFWATCH_VIEWER_ADDR, or 127.0.0.1:9713.
func WithViewerAddress(addr string) Option {
	return optionFunc(func(cfg *config) {
		cfg.viewerAddress = addr
	})
}

// WithErrorLogger sets a function to be called with errors that cannot be
// returned to a caller (for example for logging them).
func WithErrorLogger(f func(err error)) Option {
	return optionFunc(func(cfg *config) {
		cfg.errorLogger = f
	})
}

// WithSkipLogger sets a function to be called for every candidate that was
// left out of an enumeration, with the reason.
func WithSkipLogger(f func(name string, err error)) Option {
	return optionFunc(func(cfg *config) {
		cfg.skipLogger = f
	})
}

// fileConfig is the TOML representation of the configuration. Absent keys
// leave the current value alone.
type fileConfig struct {
	SelfName       *string `toml:"self_name"`
	MaxBufferBytes *uint64 `toml:"max_buffer_bytes"`
	ViewerAddress  *string `toml:"viewer_address"`
}

type configFile string

// WithConfigFile loads options from a TOML file. Options passed after it
// override the file's values.
//
//	self_name = "self"
//	max_buffer_bytes = 268435456
//	viewer_address = "127.0.0.1:9713"
func WithConfigFile(path string) Option {
	return configFile(path)
}

func (p configFile) apply(cfg *config) error {
	f, err := os.Open(string(p))
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	var fc fileConfig
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", string(p), err)
	}
	if fc.SelfName != nil {
		cfg.selfName = *fc.SelfName
	}
	if fc.MaxBufferBytes != nil {
		cfg.maxBufferBytes = *fc.MaxBufferBytes
	}
	if fc.ViewerAddress != nil {
		cfg.viewerAddress = *fc.ViewerAddress
	}
	return nil
}
