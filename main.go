package main

import (
	"os"
	"path/filepath"

	"github.com/karasz/gtleap/cmd"
)

func main() {
	_, calledAs := filepath.Split(os.Args[0])
	if run, ok := cmd.Applets[calledAs]; ok {
		os.Exit(run(os.Args[1:]))
	}
	os.Exit(cmd.MainDispatcher(os.Args[1:]))
}
