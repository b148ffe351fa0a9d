// Command warmconnector serves and queries WarmConnector connection-path
// discovery.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
