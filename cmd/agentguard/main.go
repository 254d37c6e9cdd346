package main

import "github.com/agentguard-ai/agentguard/cmd/agentguard/cmd"

func main() {
	cmd.Execute()
}
