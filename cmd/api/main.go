package main

import "github.com/shiporbit/shiporbit/cmd/api/cmd"

func main() {
	cmd.Execute()
}
