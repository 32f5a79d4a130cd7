package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSchemaFile(t *testing.T) {
	path := writeTemp(t, "schema.json", `{
		"nodes": {"s1": {"singleton": true, "type": "tensor", "dim": [4]}}
	}`)

	s, err := loadSchemaFile(path, "Source schema validation error")
	require.NoError(t, err)
	assert.Contains(t, s.Nodes, "s1")

	bad := writeTemp(t, "bad.json", `{"nodes": {}}`)
	_, err = loadSchemaFile(bad, "Source schema validation error")
	assert.Error(t, err)
}

func TestLoadGenerateConfig(t *testing.T) {
	cfg, err := loadGenerateConfig("")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Samples)
	assert.Equal(t, 10, cfg.Instances)

	path := writeTemp(t, "gen.toml", "[generate]\nsamples = 3\ninstances = 5\nseed = 42\n")
	cfg, err = loadGenerateConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Samples)
	assert.Equal(t, 5, cfg.Instances)
	assert.Equal(t, int64(42), cfg.Seed)
}

func TestGenerateThenValidate(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeTemp(t, "schema.json", `{
		"nodes": {
			"img": {"singleton": true, "type": "tensor", "dim": [2, 2]},
			"lbl": {"singleton": true, "type": "category", "class": "kinds"}
		},
		"classes": {"kinds": {"dim": 3}}
	}`)

	root := filepath.Join(dir, "out")
	rootCmd.SetArgs([]string{"dataset", "generate", root, schemaPath})
	require.NoError(t, rootCmd.Execute())

	inferred, err := inferDataset(root)
	require.NoError(t, err)
	assert.Contains(t, inferred.Nodes, "img")
	assert.Contains(t, inferred.Nodes, "lbl")
	assert.Contains(t, inferred.Classes, "kinds")
}
