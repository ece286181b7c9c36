// The main package for the deeplogs executable.
package main

import (
	"github.com/GuyChahine/deeplogs/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
