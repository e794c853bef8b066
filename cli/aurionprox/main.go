package main

import (
	"os"

	proxycmder "github.com/papercomputeco/aurion/cmd/aurion/serve/proxy"
)

func main() {
	cmd := proxycmder.NewProxyCmd()
	cmd.Use = "aurionprox"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
