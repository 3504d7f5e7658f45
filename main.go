// Copyright 2025 The Instmap Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/cairibu/instmap/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
