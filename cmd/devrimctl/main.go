package main

import "devrim/cmd/devrimctl/cmd"

func main() {
	cmd.Execute()
}
