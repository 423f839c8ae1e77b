package main

import (
	"os"

	"github.com/voxguild/permengine/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
