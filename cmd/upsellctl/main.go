// cmd/upsellctl/main.go
package main

import (
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess  = 0
	ExitAPIError = 1 // The API answered with an error body
	ExitError    = 2 // Usage, transport or encoding error
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if _, ok := err.(*apiError); ok {
			os.Exit(ExitAPIError)
		}
		os.Exit(ExitError)
	}
}
