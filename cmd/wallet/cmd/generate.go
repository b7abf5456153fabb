package cmd

import (
	"log"

	"github.com/acem702/powchain/internal/blockchain/signature"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key pair",
	Run:   generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func generateRun(cmd *cobra.Command, args []string) {
	key, err := signature.GenerateKey()
	if err != nil {
		log.Fatal(err)
	}

	if err := signature.SaveKey(getPrivateKeyPath(), key); err != nil {
		log.Fatal(err)
	}
}
