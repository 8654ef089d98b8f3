package main

import "stocksync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
