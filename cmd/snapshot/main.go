// Package main is the snapshot service binary.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/JakeFAU/snapshot-service/cmd"
)

var version = "dev"

func main() {
	cmd.Execute(version)
}
