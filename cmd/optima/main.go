package main

import "github.com/lexcodex/optima/app/cmd"

func main() {
	cmd.Execute()
}
