package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/karasz/gtleap/data"
	"github.com/karasz/gtleap/leapsecs"
	"github.com/karasz/gtleap/leapsecs/leapfile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// normalize drops formatting differences
func normalize(src []byte) string {
	return strings.Join(strings.Fields(string(src)), " ")
}

func TestGenerateTableMatchesBuiltin(t *testing.T) {
	src, err := generateTable(bytes.NewReader(data.LeapSecondsList), "leapsecs")
	require.NoError(t, err)

	committed, err := os.ReadFile(filepath.Join("..", "leapsecs", "builtin_table.go"))
	require.NoError(t, err)
	assert.Equal(t, normalize(committed), normalize(src), "builtin_table.go is stale, run go generate ./leapsecs")
}

func TestGenerateTableContent(t *testing.T) {
	src, err := generateTable(bytes.NewReader(data.LeapSecondsList), "leapsecs")
	require.NoError(t, err)
	out := string(src)

	assert.True(t, strings.HasPrefix(out, "// Code generated by leapgen from leap-seconds.list; DO NOT EDIT.\n"))
	assert.Contains(t, out, "// List updated 2026-07-07, expires 2027-06-28.\n")
	assert.Contains(t, out, "\npackage leapsecs\n")
	assert.NotContains(t, out, "import")
	assert.Contains(t, out, "{Epoch: 63072000, Count: 10},")
	assert.Contains(t, out, "// 1 Jan 1972\n")
	assert.Contains(t, out, "{Epoch: 1483228800, Count: 37}, // 1 Jan 2017\n")
	assert.Equal(t, leapsecs.Builtin().Len(), strings.Count(out, "{Epoch:"))
}

func TestGenerateTableOtherPackage(t *testing.T) {
	list := "2272060800\t10\n2287785600\t11\n"
	src, err := generateTable(strings.NewReader(list), "tables")
	require.NoError(t, err)
	out := string(src)

	assert.Contains(t, out, "package tables\n")
	assert.Contains(t, out, "import \"github.com/karasz/gtleap/leapsecs\"\n")
	assert.Contains(t, out, "var builtinEntries = []leapsecs.Entry{\n")
	assert.NotContains(t, out, "// List updated")
	assert.Contains(t, out, "{Epoch: 78796800, Count: 11}, // 1 Jul 1972\n")
}

func TestGenerateTableRejects(t *testing.T) {
	_, err := generateTable(strings.NewReader("2287785600\t11\n"), "leapsecs")
	assert.ErrorIs(t, err, leapsecs.ErrMalformedTable)

	_, err = generateTable(strings.NewReader("not a list\n"), "leapsecs")
	assert.ErrorIs(t, err, leapfile.ErrSyntax)

	tampered := bytes.Replace(data.LeapSecondsList, []byte("3692217600\t37"), []byte("3692217600\t38"), 1)
	_, err = generateTable(bytes.NewReader(tampered), "leapsecs")
	assert.ErrorIs(t, err, leapfile.ErrHashMismatch)
}

func TestLeapGenRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "table.go")
	require.Equal(t, 0, LeapGenRun([]string{"-o", out}))

	src, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(src), "var builtinEntries = []Entry{")

	assert.Equal(t, exitFailure, LeapGenRun([]string{"-i", filepath.Join(t.TempDir(), "missing.list")}))
}
