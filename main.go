package main

import "github/chapool/go-stark-signer/cmd"

func main() {
	cmd.Execute()
}
