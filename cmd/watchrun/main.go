// watchrun runs project tasks and re-runs them when watched files change.
package main

import (
	"os"

	"github.com/hupe1980/watchrun/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
