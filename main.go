// The main package for the policyharvester executable.
package main

import (
	"github.com/bredec/policy-harvester/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
