package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	// small deployments can run on a sqlite file instead of postgres
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	c := cli.NewCLI("narc", version)
	c.Args = os.Args[1:]
	c.Commands = map[string]cli.CommandFactory{
		"run": func() (cli.Command, error) {
			return &runCommand{}, nil
		},
		"migrate": func() (cli.Command, error) {
			return &migrateCommand{}, nil
		},
	}

	status, err := c.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	os.Exit(status)
}
