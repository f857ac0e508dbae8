package config

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reliant/internal/negotiate"
)

const sample = `
window_size: 4
maximum_msg_size: 5
timeout: 1000
dynamic_size: true
message_file: payload.txt
`

func TestLoadParsesYaml(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "config.yaml", []byte(sample), 0o644))

	f, err := Load(context.Background(), fs, "config.yaml")
	require.NoError(t, err)
	assert.Equal(t, negotiate.Params{WindowSize: 4, MaximumMsgSize: 5, Timeout: 1000, DynamicSize: true}, f.Params())
	assert.Equal(t, "payload.txt", f.MessageFile)
}

func TestLoadAppliesEnvOverride(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "config.yaml", []byte(sample), 0o644))
	t.Setenv("RDT_WINDOW_SIZE", "8")

	f, err := Load(context.Background(), fs, "config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 8, f.WindowSize)
}

func TestLoadMissingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := Load(context.Background(), fs, "missing.yaml")
	assert.Error(t, err)
}

func TestPayloadSourceMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := PayloadSource(fs, File{})
	assert.ErrorIs(t, err, ErrPayloadSourceMissing)

	_, err = PayloadSource(fs, File{MessageFile: "nope.txt"})
	assert.ErrorIs(t, err, ErrPayloadSourceMissing)
}

func TestPayloadSourceReadsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "payload.txt", []byte("HELLOWORLD"), 0o644))

	got, err := PayloadSource(fs, File{MessageFile: "payload.txt"})
	require.NoError(t, err)
	assert.Equal(t, "HELLOWORLD", got)
}

func TestWriteRoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	f := File{WindowSize: 2, MaximumMsgSize: 3, Timeout: 100, DynamicSize: true, MessageFile: "m.txt"}
	require.NoError(t, Write(fs, "manual_config.yaml", f))

	got, err := Load(context.Background(), fs, "manual_config.yaml")
	require.NoError(t, err)
	assert.Equal(t, f.Params(), got.Params())
}
