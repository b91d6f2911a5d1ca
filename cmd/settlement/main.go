package main

import "github.com/rony4d/go-settlement/cmd/settlement/launcher"

func main() {
	launcher.Main()
}
