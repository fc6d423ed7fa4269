package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/mnehpets/oneplugin/config"
	"github.com/mnehpets/oneplugin/kernel"
	"github.com/mnehpets/oneplugin/plugin"
)

func testOptions() []plugin.Option {
	return []plugin.Option{
		plugin.WithName("demo"),
		plugin.WithVersion("0.4.0"),
		plugin.WithKernels(kernel.Class("demo", func(base kernel.Base, _ []json.RawMessage) (kernel.Kernel, error) {
			return &base, nil
		})),
	}
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	for _, key := range []string{config.EnvTransport, config.EnvPort, config.EnvToken, config.EnvLogLevel} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cmd := NewRootCommand(testOptions()...)
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "demo version 0.4.0\n", out)
}

func TestRootCommandName(t *testing.T) {
	assert.Equal(t, "demo", NewRootCommand(testOptions()...).Use)
	assert.Equal(t, "plugin", NewRootCommand().Use)
}

func TestManifestRejectsDuplicateClasses(t *testing.T) {
	dup := kernel.Class("demo", func(base kernel.Base, _ []json.RawMessage) (kernel.Kernel, error) {
		return &base, nil
	})
	cmd := NewRootCommand(append(testOptions(), plugin.WithKernels(dup))...)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"manifest"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}

func TestManifest(t *testing.T) {
	out, _, err := run(t, "", "manifest")
	require.NoError(t, err)

	var m plugin.Manifest
	require.NoError(t, yaml.Unmarshal([]byte(out), &m))
	assert.Equal(t, plugin.Manifest{Name: "demo", Version: "0.4.0", Kernels: []string{"demo"}, Assistants: []string{}}, m)
}

func TestServeStdio(t *testing.T) {
	in := `{"jsonrpc":"2.0","id":1,"method":"kernel_start","params":["demo"]}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"kernels"}` + "\n\n"
	out, logs, err := run(t, in, "serve", "--log-level", "debug")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"instance":"demo-`)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":2,"result":["demo"]}`, lines[1])
	assert.Contains(t, logs, "plugin starting")
	assert.Contains(t, logs, "rpc call")
}

func TestServeRejectsHTTPWithoutToken(t *testing.T) {
	_, _, err := run(t, "", "serve", "--transport", "http")
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestServeEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("STENCILA_TRANSPORT=smoke-signals\n"), 0o600))

	_, _, err := run(t, "", "serve", "--env-file", path)
	assert.ErrorIs(t, err, config.ErrInvalid)

	// Flags win over the file.
	_, _, err = run(t, "\n", "serve", "--env-file", path, "--transport", "stdio")
	assert.NoError(t, err)
}
