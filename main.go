package main

import (
	"spotiqueue/cmd"
)

func main() {
	cmd.Execute()
}
