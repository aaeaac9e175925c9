package main

import "tagcheck/internal/cli"

// These variables are populated by the build via -ldflags, e.g.
// go build -ldflags "-X main.version=v1.2.0 -X main.commit=$(git rev-parse --short HEAD)".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.SetBuildInfo(version, commit, date)
	cli.Execute()
}
