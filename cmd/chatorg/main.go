package main

import (
	"os"

	"github.com/theimaginaryfoundation/chat-organizer/cmd/chatorg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
