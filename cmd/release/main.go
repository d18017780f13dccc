package main

import "github.com/shiporbit/shiporbit/cmd/release/cmd"

func main() {
	cmd.Execute()
}
