package main

import "github.com/rustscout/rustscout/cmd"

func main() {
	cmd.Execute()
}
