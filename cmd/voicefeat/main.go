// Package main provides the voicefeat CLI, which prints the acoustic
// features of local recordings as JSON.
//
// Usage:
//
//	voicefeat extract [flags] <file>...
package main

import (
	"fmt"
	"os"

	"github.com/RMahshie/echohealth/cmd/voicefeat/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
