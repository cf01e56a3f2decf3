// Command trackctl inspects tracking state in the KV store and the click archive.
package main

import (
	"fmt"
	"os"

	"github.com/kaancat/elportal-forside-design-sub009/internal/config"
)

var Version = "dev"

func main() {
	config.LoadDotEnv()

	if err := newRootCmd(&app{}).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
