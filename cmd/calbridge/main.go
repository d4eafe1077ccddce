package main

import "github.com/theakshaypant/calbridge/cmd/calbridge/cmd"

func main() {
	cmd.Execute()
}
