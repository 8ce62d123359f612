// Package main is ledgerctl, the operator CLI for prodledger: schema
// migration, ledger rebuilds, balance lookups, demo seeding and tokens.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
