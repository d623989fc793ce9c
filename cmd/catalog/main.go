// Command catalog manages the reference data of the engine: it validates
// and seeds the capacity, achievement and mission catalog, prints the level
// curve and issues athlete sessions for local testing.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
