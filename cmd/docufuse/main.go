package main

import "github.com/docufuse/docufuse/cmd/docufuse/cmd"

func main() {
	cmd.Execute()
}
