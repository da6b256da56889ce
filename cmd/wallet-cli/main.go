package main

import "wallet-vault/cmd/wallet-cli/cmd"

func main() {
	cmd.Execute()
}
