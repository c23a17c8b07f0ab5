package main

import (
	"os"

	"github.com/rcliao/recall/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
