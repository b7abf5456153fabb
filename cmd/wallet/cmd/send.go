package cmd

import (
	"log"
	"strings"
	"time"

	"github.com/acem702/powchain/internal/blockchain/database"
	"github.com/acem702/powchain/internal/blockchain/gossip"
	"github.com/acem702/powchain/internal/blockchain/signature"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	nodeAddress string
	to          string
	amount      uint64
	gas         uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Sign and submit a transaction to a node",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&nodeAddress, "node", "n", "ws://127.0.0.1:9080", "Address of the node to submit through.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Recipient address.")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "v", 0, "Amount to send.")
	sendCmd.Flags().Uint64VarP(&gas, "gas", "g", database.MinTxFee, "Gas/fee to attach.")
}

func sendRun(cmd *cobra.Command, args []string) {
	key, err := signature.LoadKey(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	tx, err := database.NewTx(
		database.Address(to),
		database.NewBigInt(int64(amount)),
		database.NewBigInt(int64(gas)),
		nil,
		uint64(time.Now().UnixMilli()),
	)
	if err != nil {
		log.Fatal(err)
	}

	signed, err := tx.Sign(key)
	if err != nil {
		log.Fatal(err)
	}

	msg, err := gossip.NewCreateTransactionMessage(signed)
	if err != nil {
		log.Fatal(err)
	}

	wsURL := nodeAddress
	if !strings.HasPrefix(wsURL, "ws://") && !strings.HasPrefix(wsURL, "wss://") {
		wsURL = "ws://" + wsURL
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	selfHandshake, err := gossip.NewMessage(gossip.MessageHandshake, gossip.HandshakePayload{Address: "wallet"})
	if err != nil {
		log.Fatal(err)
	}
	if err := conn.WriteJSON(selfHandshake); err != nil {
		log.Fatal(err)
	}

	if err := conn.WriteJSON(msg); err != nil {
		log.Fatal(err)
	}

	log.Printf("submitted tx %s", signed.Hash())
}
