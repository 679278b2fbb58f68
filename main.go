package main

import "github.com/agenthubhq/agenthub-cli/cmd"

func main() {
	cmd.Execute()
}
