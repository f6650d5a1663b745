package main

import "github.com/deploymenttheory/go-fvde/cmd"

func main() {
	cmd.Execute()
}
