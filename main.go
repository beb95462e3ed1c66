package main

import "github.com/fabmirror/fabmirror/cmd"

func main() {
	cmd.Execute()
}
