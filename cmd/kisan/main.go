// Command kisan is the entry point for the farmer advisory service.
// It provides a CLI (via Cobra) for one-off questions and an HTTP server
// for the chat front end.
package main

import (
	"fmt"
	"os"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/cmd/kisan/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
