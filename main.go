package main

import "github.com/moyu-x/organize/cmd"

func main() {
	cmd.Execute()
}
