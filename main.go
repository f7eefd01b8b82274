package main

import "krom-analysis/cmd"

func main() {
	cmd.Execute()
}
