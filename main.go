package main

import "github.com/stevehiehn/orquestator/cmd"

func main() {
	cmd.Execute()
}
