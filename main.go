// The main package for the openrice-crawler executable.
package main

import (
	"context"
	"os"

	"github.com/JakeFAU/openrice-crawler/cmd"
)

// main defers all execution to the Cobra CLI; cobra has already printed
// the error by the time Execute returns one.
func main() {
	if err := cmd.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
