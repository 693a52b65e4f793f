package main

import "github.com/agentic-research/coherence/cmd"

func main() {
	cmd.Execute()
}
