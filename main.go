package main

import "github.com/legacy-guard/guard-client/cmd/cli"

func main() {
	cli.Main()
}
