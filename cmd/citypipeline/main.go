package main

import (
	"os"

	"k8s.io/component-base/cli"
)

func main() {
	code := cli.Run(NewCommand())
	os.Exit(code)
}
