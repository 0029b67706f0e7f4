package main

import "recipesync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
