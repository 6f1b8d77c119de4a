// Command sqlqa runs the SQL question agent locally: as a web server, as an
// interactive prompt or for one-off questions.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
