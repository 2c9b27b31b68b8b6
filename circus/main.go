// Package main is the entry point of the circus command.
package main

import "github.com/sarchlab/circus/circus/cmd"

func main() {
	cmd.Execute()
}
