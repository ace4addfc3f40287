package main

import (
	"os"

	"github.com/zjrosen/clarionscope/cmd"
)

// Set by the release build with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = ""
)

func main() {
	v := version
	if commit != "" {
		v += " (" + commit + ")"
	}
	cmd.SetVersion(v)
	os.Exit(cmd.Execute())
}
