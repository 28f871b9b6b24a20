// Command central is the operator CLI for the BPD task dashboard data
// core. It runs the same sync engine the dashboard embeds, against the
// local store or a centrald endpoint.
package main

import (
	"os"

	"github.com/bpd-ops/central/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
