package cmd

import (
	"bytes"
	"errors"
	"go/format"
	"io"
	"os"
	"text/template"
	"time"

	"github.com/karasz/gtleap/data"
	"github.com/karasz/gtleap/leapsecs"
	"github.com/karasz/gtleap/leapsecs/leapfile"
	"github.com/rs/zerolog/log"
)

var tableTemplate = template.Must(template.New("table").Funcs(template.FuncMap{
	"date": func(epoch int64) string {
		return time.Unix(epoch, 0).UTC().Format("2 Jan 2006")
	},
	"day": func(t time.Time) string {
		return t.UTC().Format(time.DateOnly)
	},
}).Parse(`// Code generated by leapgen from leap-seconds.list; DO NOT EDIT.
{{- if and (not .Updated.IsZero) (not .Expires.IsZero)}}
// List updated {{day .Updated}}, expires {{day .Expires}}.
{{- end}}

package {{.Package}}
{{- if .Qualifier}}

import "github.com/karasz/gtleap/leapsecs"
{{- end}}

var builtinEntries = []{{.Qualifier}}Entry{
{{- range .Entries}}
	{Epoch: {{.Epoch}}, Count: {{.Count}}}, // {{date .Epoch}}
{{- end}}
}
`))

type tableData struct {
	Package   string
	Qualifier string
	Updated   time.Time
	Expires   time.Time
	Entries   []leapsecs.Entry
}

// generateTable renders the leap-seconds.list read from r as Go source for
// package pkg. The list must verify, unless it has no hash, and must start
// with the 1972 entry.
func generateTable(r io.Reader, pkg string) ([]byte, error) {
	f, err := leapfile.Parse(r)
	if err != nil {
		return nil, err
	}
	if err := f.Verify(); err != nil && !errors.Is(err, leapfile.ErrNoHash) {
		return nil, err
	}
	if _, err := f.Table(); err != nil {
		return nil, err
	}

	td := tableData{
		Package: pkg,
		Updated: f.Updated,
		Expires: f.Expires,
		Entries: f.Entries,
	}
	if pkg != "leapsecs" {
		td.Qualifier = "leapsecs."
	}

	var buf bytes.Buffer
	if err := tableTemplate.Execute(&buf, td); err != nil {
		return nil, err
	}
	return format.Source(buf.Bytes())
}

// LeapGenRun regenerates the builtin leap second table from a
// leap-seconds.list, the bundled copy by default.
func LeapGenRun(args []string) int {
	fs := newFlagSet("leapgen")
	input := fs.StringP("input", "i", "", "leap-seconds.list to read, the bundled copy by default")
	output := fs.StringP("output", "o", "builtin_table.go", "file to write, - for standard output")
	pkg := fs.StringP("package", "p", "leapsecs", "package of the generated file")

	if _, _, err := setup(fs, args); err != nil {
		log.Error().Err(err).Msg("leapgen")
		return exitFailure
	}

	var in io.Reader = bytes.NewReader(data.LeapSecondsList)
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			log.Error().Err(err).Msg("leapgen")
			return exitFailure
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	src, err := generateTable(in, *pkg)
	if err != nil {
		log.Error().Err(err).Str("input", *input).Msg("leapgen")
		return exitFailure
	}

	if *output == "-" {
		_, err = os.Stdout.Write(src)
	} else {
		err = os.WriteFile(*output, src, 0o644)
	}
	if err != nil {
		log.Error().Err(err).Msg("leapgen")
		return exitFailure
	}
	log.Info().Str("output", *output).Msg("leap second table generated")
	return 0
}
