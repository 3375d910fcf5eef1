// pductl is a command-line tool for talking to networked power-distribution
// devices: inspect device identity and outlet state, switch outlets, stream
// live notifications, or run a local device simulator for development.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "pductl: %v\n", err)
		os.Exit(1)
	}
}
