package main

import "shield-core/cmd/shield-cli/cmd"

func main() {
	cmd.Execute()
}
