package main

import (
	"os"

	apicmder "github.com/papercomputeco/aurion/cmd/aurion/serve/api"
)

func main() {
	cmd := apicmder.NewAPICmd()
	cmd.Use = "aurionapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
