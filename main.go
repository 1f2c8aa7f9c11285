package main

import "github.com/Yates-Labs/memctx/cmd"

func main() {
	cmd.Execute()
}
