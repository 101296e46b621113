package main

import "github.com/agentic-research/ttsync/cmd"

func main() {
	cmd.Execute()
}
