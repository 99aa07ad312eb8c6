package main

import "github.com/hurou927/schemashift/cmd"

func main() {
	cmd.Execute()
}
