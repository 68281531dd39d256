package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/weatherdesk/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "weatherdesk: %v\n", err)
		os.Exit(1)
	}
}
