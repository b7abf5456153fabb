package state

import (
	"fmt"

	"github.com/acem702/powchain/internal/blockchain/contract"
	"github.com/acem702/powchain/internal/blockchain/database"
	"github.com/acem702/powchain/internal/blockchain/signature"
)

// transitionBlock implements spec.md §4.3's applyBlock against an
// in-memory overlay rather than the live stateDB: either every
// transaction in block applies cleanly, or the first failure is
// returned and the caller discards the overlay, so the live state
// never observes a partially-applied block (the REDESIGN FLAGS "State
// snapshots for validation" item). verifyAgainstHead and
// applyBlockLocked both call this against their own overlay — one
// throwaway, one destined for Accounts.Commit.
func (s *State) transitionBlock(overlay map[database.Address]database.Account, block database.Block) error {
	if len(block.Transactions) == 0 {
		return fmt.Errorf("block has no coinbase: %w", database.ErrInvalidBlock)
	}

	view := database.FromOverlay(overlay)

	for i, tx := range block.Transactions {
		if i == 0 {
			if err := s.applyCoinbase(overlay, tx); err != nil {
				return err
			}
			continue
		}

		if err := tx.Validate(view); err != nil {
			return err
		}

		if err := s.applyTransaction(overlay, tx); err != nil {
			return err
		}
	}

	return nil
}

// applyCoinbase credits the coinbase's recipient (the miner) without
// any debit or replay bookkeeping, per spec.md §4.3.
func (s *State) applyCoinbase(overlay map[database.Address]database.Account, tx database.Tx) error {
	recipient := database.Lookup(overlay, tx.Recipient)
	recipient.Balance = database.Add(recipient.Balance, tx.Amount)
	overlay[tx.Recipient] = recipient
	return nil
}

// applyTransaction implements the four steps of spec.md §4.3 for a
// single non-coinbase transaction. tx must already have passed
// Validate against the current overlay.
func (s *State) applyTransaction(overlay map[database.Address]database.Account, tx database.Tx) error {
	from, err := tx.FromAddress()
	if err != nil {
		return err
	}

	// Step 1: debit the sender, credit the recipient.
	sender := database.Lookup(overlay, from)
	sender.Balance = database.Sub(sender.Balance, tx.TotalCost())
	overlay[from] = sender

	_, recipientExisted := overlay[tx.Recipient]
	recipient := database.Lookup(overlay, tx.Recipient)
	recipient.Balance = database.Add(recipient.Balance, tx.Amount)

	// Step 2: record the timestamp as consumed so it cannot be replayed.
	sender.Timestamps.Add(tx.Timestamp)
	overlay[from] = sender

	switch {
	case tx.AdditionalData != nil && tx.AdditionalData.SCBody != "" && !recipientExisted:
		// Step 3: contract deployment on a brand new recipient.
		recipient.Body = tx.AdditionalData.SCBody
		recipient.CodeHash = contractCodeHash(recipient.Body)
		if tx.AdditionalData.StorageMap != nil {
			recipient.Storage = cloneStorage(tx.AdditionalData.StorageMap)
		}

	case recipient.Body != "":
		// Step 4: invoke the interpreter against the recipient's
		// existing contract. A failed run only discards storage
		// changes; the transfer above and the gas debit already
		// applied still stand.
		s.runContract(tx, from, &recipient)
	}

	overlay[tx.Recipient] = recipient
	return nil
}

func (s *State) runContract(tx database.Tx, from database.Address, recipient *database.Account) {
	gasLimit := database.NewBigInt(0)
	if tx.AdditionalData != nil && tx.AdditionalData.ContractGas != nil {
		gasLimit = tx.AdditionalData.ContractGas
	}

	scratch := cloneStorage(recipient.Storage)
	result, err := contract.Run(recipient.Body, contract.Context{
		Sender:  from,
		Value:   tx.Amount,
		Storage: scratch,
	}, gasLimit)

	if err != nil {
		s.logf("contract: tx[%s] execution failed: %v", tx.Hash(), err)
		return
	}

	recipient.Storage = scratch
	s.logf("contract: tx[%s] executed: gasUsed[%s] halted[%t]", tx.Hash(), result.GasUsed, result.Halted)
}

func cloneStorage(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func contractCodeHash(body string) string {
	return signature.Hash([]byte(body))
}

// applyBlockLocked persists block's resulting accounts and only then
// commits them to the live stateDB. It assumes block has already
// passed verifyAgainstHead; it is also used, unchecked, during
// replayPersistedChain on startup.
//
// Per spec.md §7's StorageError handling, a persist failure here must
// not advance the in-memory head: returning before Commit leaves
// s.accounts exactly as it was, and the caller returns before its head
// update. The caller has already written the block itself to blockDB
// by then.
func (s *State) applyBlockLocked(block database.Block) error {
	overlay := s.accounts.Snapshot()
	if err := s.transitionBlock(overlay, block); err != nil {
		return err
	}

	if err := s.persistAccounts(overlay); err != nil {
		return err
	}
	s.accounts.Commit(overlay)
	return nil
}
