package main

import (
	"os"

	"github.com/JayJamieson/db-cli/pkg/cli"
)

func main() {
	os.Exit(cli.Main(cli.DBCLI))
}
