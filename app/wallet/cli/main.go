// This program provides a simple command line wallet for the chain.
package main

import "github.com/blocksync/chain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
