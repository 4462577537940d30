package main

import "github.com/felixgeelhaar/ace/cmd/ace/cli"

func main() {
	cli.Execute()
}
