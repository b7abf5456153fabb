// Package cmd contains the wallet CLI's subcommands: generate, address,
// and send, mirroring the teacher's app/wallet/cli/cmd layout.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
)

const keyExtension = ".ecdsa"

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Directory holding private key files.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Your powchain wallet",
}

// Execute runs the wallet CLI, exiting 1 on any command failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	if !strings.HasSuffix(accountName, keyExtension) {
		accountName += keyExtension
	}
	return filepath.Join(accountPath, accountName)
}
