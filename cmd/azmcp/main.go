// Command azmcp exposes the Azure CLI to MCP clients and over a small
// HTTP API. See the package documentation under internal/ for the moving
// parts; this binary only wires them together.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/azmcp-go/cmd/azmcp/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
