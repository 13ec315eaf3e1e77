package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pep299/tech-digest/internal/digest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHelp(t *testing.T) {
	out, err := execute(t, "--help")

	require.NoError(t, err)
	assert.Contains(t, out, "Tech News Digest")
	for _, flag := range []string{"--period", "--articles", "--config", "--send-email"} {
		assert.Contains(t, out, flag)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "--version")

	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestFlagsToOptions(t *testing.T) {
	f := flags{period: "3d", articles: 5, sendEmail: true}

	assert.Equal(t, digest.Options{Period: "3d", ArticlesPerCategory: 5, SendEmail: true}, f.options())
	assert.Equal(t, digest.Options{}, flags{}.options(), "unset flags fall back to config")
}

func TestMissingConfigFails(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config")
}

func TestNegativeArticlesRejected(t *testing.T) {
	_, err := execute(t, "--articles", "-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--articles")
}

func TestRejectsPositionalArgs(t *testing.T) {
	_, err := execute(t, "extra")

	assert.Error(t, err)
}

func TestListCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output_dir: "+outDir+"\n"), 0o644))
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outDir, "digest-2024-06-01.md"), []byte("x"), 0o644))
	t.Setenv("DIGEST_BUCKET", "")

	out, err := execute(t, "list", "--config", cfgPath)

	require.NoError(t, err)
	assert.Equal(t, "digest-2024-06-01.md", strings.TrimSpace(out))
}
