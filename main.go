package main

import "github.com/code-sleuth/caselaw-go/cmd"

func main() {
	cmd.Execute()
}
