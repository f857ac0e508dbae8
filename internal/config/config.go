// Package config loads the session's NegotiationProposal and payload
// source (spec §2/§6) from a YAML file on disk, with environment-variable
// overrides, and can persist a proposal entered interactively back to
// disk — the Go analogue of the original client's manual_config.txt
// feature (see SPEC_FULL.md, SUPPLEMENTED FEATURES).
package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/pkg/errors"

	"reliant/internal/negotiate"
)

// ErrPayloadSourceMissing is returned when a sender config names a message
// file that does not exist on the configured filesystem.
var ErrPayloadSourceMissing = errors.New("config: payload source file missing")

// File is the on-disk (and environment-overridable) shape of a session's
// configuration. Field names and on-disk keys mirror the original
// config.txt: window_size, maximum_msg_size, timeout, dynamic_size,
// message_file.
type File struct {
	WindowSize     int    `yaml:"window_size" env:"WINDOW_SIZE"`
	MaximumMsgSize int    `yaml:"maximum_msg_size" env:"MAXIMUM_MSG_SIZE"`
	Timeout        int    `yaml:"timeout" env:"TIMEOUT"`
	DynamicSize    bool   `yaml:"dynamic_size" env:"DYNAMIC_SIZE"`
	MessageFile    string `yaml:"message_file,omitempty" env:"MESSAGE_FILE"`
}

// Params returns the NegotiationProposal this file describes.
func (f File) Params() negotiate.Params {
	return negotiate.Params{
		WindowSize:     f.WindowSize,
		MaximumMsgSize: f.MaximumMsgSize,
		Timeout:        f.Timeout,
		DynamicSize:    f.DynamicSize,
	}
}

// Load reads a YAML config file from fs at path, then applies any
// RDT_-prefixed environment variable overrides on top.
func Load(ctx context.Context, fs afero.Fs, path string) (File, error) {
	var f File
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return File{}, errors.Wrapf(err, "config: read %s", path)
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, errors.Wrapf(err, "config: parse %s", path)
	}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &f,
		Lookuper: envconfig.PrefixLookuper("RDT_", envconfig.OsLookuper()),
	}); err != nil {
		return File{}, errors.Wrap(err, "config: apply environment overrides")
	}
	return f, nil
}

// Write persists f to path on fs as YAML, the Go analogue of the
// original's FileConfiger: used by --interactive to save a manually
// entered proposal for reuse on the next run.
func Write(fs afero.Fs, path string, f File) error {
	b, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "config: marshal")
	}
	if err := afero.WriteFile(fs, path, b, 0o644); err != nil {
		return errors.Wrapf(err, "config: write %s", path)
	}
	return nil
}

// PayloadSource reads the sender's message file, per f.MessageFile, off fs.
func PayloadSource(fs afero.Fs, f File) (string, error) {
	if f.MessageFile == "" {
		return "", errors.WithStack(ErrPayloadSourceMissing)
	}
	exists, err := afero.Exists(fs, f.MessageFile)
	if err != nil {
		return "", errors.Wrapf(err, "config: stat %s", f.MessageFile)
	}
	if !exists {
		return "", errors.Wrapf(ErrPayloadSourceMissing, "%s", f.MessageFile)
	}
	b, err := afero.ReadFile(fs, f.MessageFile)
	if err != nil {
		return "", errors.Wrapf(err, "config: read %s", f.MessageFile)
	}
	return string(b), nil
}

// NewOsFs returns the real OS filesystem, so cmd/ packages can obtain an
// afero.Fs without importing afero themselves.
func NewOsFs() afero.Fs { return afero.NewOsFs() }
