// Command opsengine runs the scheduling and pricing optimizers from the command line.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/krisalay/ops-engine/logging"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	logging.Init()

	app := newApp(os.Stdout, os.Stderr)
	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
