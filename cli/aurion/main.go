package main

import (
	"os"

	aurioncmder "github.com/papercomputeco/aurion/cmd/aurion"
)

func main() {
	cmd := aurioncmder.NewAurionCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
