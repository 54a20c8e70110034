package main

import (
	"os"

	"github.com/sahithikokkula/emission-uncertainty/euq/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
