package main

import "github.com/kozaktomas/photo-dupes/cmd"

func main() {
	cmd.Execute()
}
