// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
