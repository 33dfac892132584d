package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/kvcontainer/pkg/db"
	"github.com/eigerco/kvcontainer/pkg/db/memory"
)

func testConfig(t *testing.T) config {
	return config{
		path:   filepath.Join(t.TempDir(), "seqs", "chunk"),
		engine: memory.NewEngine(),
		tuning: db.DefaultOptions(),
	}
}

func runOut(t *testing.T, cfg config, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(cfg, args, &out))
	return out.String()
}

func TestCommands(t *testing.T) {
	cfg := testConfig(t)

	runOut(t, cfg, "set", "meta.x", "123")
	runOut(t, cfg, "set", "meta.z", "x")
	runOut(t, cfg, "set", "zzz", "oOo")

	assert.Equal(t, "\"123\"\n", runOut(t, cfg, "get", "meta.x"))
	assert.Equal(t, "\"meta.x\" = \"123\"\n\"meta.z\" = \"x\"\n", runOut(t, cfg, "dump", "meta."))
	assert.Equal(t, "\"meta.x\"\n\"meta.z\"\n\"zzz\"\n", runOut(t, cfg, "segments"))
	assert.Contains(t, runOut(t, cfg, "status"), "in progress")
	assert.Len(t, strings.TrimSpace(runOut(t, cfg, "digest")), 64)

	runOut(t, cfg, "delete", "zzz")
	var out bytes.Buffer
	assert.Error(t, run(cfg, []string{"get", "zzz"}, &out))

	hexCfg := cfg
	hexCfg.hex = true
	assert.Equal(t, "313233\n", runOut(t, hexCfg, "get", "meta.x"))
}

func TestFinalizeAndDiff(t *testing.T) {
	cfg := testConfig(t)
	index := filepath.Join(filepath.Dir(filepath.Dir(cfg.path)), "index", "all")

	runOut(t, cfg, "set", "a", "1")
	runOut(t, cfg, "set", "b", "2")
	runOut(t, cfg, "finalize", index)
	assert.True(t, strings.HasSuffix(runOut(t, cfg, "status"), ": finalized\n"))
	assert.Empty(t, runOut(t, cfg, "diff", index))

	runOut(t, cfg, "set", "c", "3")
	diff := runOut(t, cfg, "diff", index)
	assert.Contains(t, diff, "-\"c\" = \"3\"")
}

func TestFinalizeIgnoresReadOnlyFlag(t *testing.T) {
	cfg := testConfig(t)
	index := filepath.Join(filepath.Dir(filepath.Dir(cfg.path)), "index", "all")
	runOut(t, cfg, "set", "a", "1")

	cfg.readOnly = true
	runOut(t, cfg, "finalize", index)
	assert.True(t, strings.HasSuffix(runOut(t, cfg, "status"), ": finalized\n"))
	assert.Empty(t, runOut(t, cfg, "diff", index))
}

func TestUsageErrors(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	assert.ErrorIs(t, run(cfg, []string{"set", "only-key"}, &out), errUsage)
	assert.ErrorContains(t, run(cfg, []string{"frobnicate"}, &out), "unknown command")

	_, err := engineByName("rocksdb")
	assert.Error(t, err)
}
