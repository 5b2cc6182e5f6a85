package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMainDispatcher(t *testing.T) {
	assert.Equal(t, 1, MainDispatcher(nil))
	assert.Equal(t, 1, MainDispatcher([]string{"gtclockd"}))
	assert.Equal(t, 0, MainDispatcher([]string{"leapcount", "1483228800"}))
	assert.Equal(t, exitFailure, MainDispatcher([]string{"leapcount", "never"}))
}

func TestApplets(t *testing.T) {
	for _, name := range []string{"leapcount", "tailocal", "taiclockd", "taiclockc", "gntpclock", "leapgen"} {
		assert.Contains(t, Applets, name)
	}
}

func TestSetup(t *testing.T) {
	t.Setenv("GTLEAP_CONFIG", "")
	fs := newFlagSet("test")
	cfg, tbl, err := setup(fs, []string{"--log-level", "0", "rest"})
	assert.NoError(t, err)
	assert.Equal(t, 0, cfg.Log.Level)
	assert.Equal(t, 37, tbl.Last().Count)
	assert.Equal(t, []string{"rest"}, fs.Args())

	_, _, err = setup(newFlagSet("test"), []string{"--leapfile", "/nonexistent/leap-seconds.list"})
	assert.Error(t, err)
}
