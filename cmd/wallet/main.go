// Command wallet is the keygen/address/send convenience CLI, mirroring
// the teacher's app/wallet/cli entrypoint.
package main

import "github.com/acem702/powchain/cmd/wallet/cmd"

func main() {
	cmd.Execute()
}
