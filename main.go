// The main package for the fonapi executable.
package main

import (
	"github.com/burakyilmaz321/fonapi/cmd"
)

func main() {
	cmd.Execute()
}
