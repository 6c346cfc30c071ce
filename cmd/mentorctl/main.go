package main

import (
	"os"

	"github.com/mentorlink/go-mentor-client/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
