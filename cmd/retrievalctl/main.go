// Command retrievalctl drives the retrieval engine from the terminal: ad-hoc
// retrievals, article import, full reindexing and strategy inspection.
package main

import (
	"fmt"
	"os"

	"github.com/whatsgood/brand-retrieval/cmd/retrievalctl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
