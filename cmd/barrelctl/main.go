// Command barrelctl runs operational tasks against a barrel-backend
// deployment: schema migrations, audit verification and export, and
// development tokens.
package main

import (
	"os"
	_ "time/tzdata"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
