package database

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// AdditionalData is the optional, loosely-typed payload a transaction
// may carry. Only contract-related transactions populate it; a plain
// transfer omits it entirely.
type AdditionalData struct {
	// ContractGas meters execution of SCBody or of the recipient's
	// already-deployed contract. Required when either applies.
	ContractGas *BigInt `json:"contractGas,omitempty" mapstructure:"contractGas"`

	// SCBody is the contract source deployed when this transaction
	// first creates its recipient account.
	SCBody string `json:"scBody,omitempty" mapstructure:"scBody"`

	// StorageMap seeds the recipient's contract storage at deploy
	// time. A call transaction's StorageMap is not passed to the
	// interpreter.
	StorageMap map[string]string `json:"storageMap,omitempty" mapstructure:"storageMap"`
}

// IsContractCall reports whether the payload declares contract gas,
// which is required for both deploy and call transactions.
func (a *AdditionalData) IsContractCall() bool {
	return a != nil && a.ContractGas != nil
}

// DecodeAdditionalData converts a loosely-typed JSON object (as
// decoded into map[string]any by encoding/json) into a typed
// AdditionalData, using the same "decode hook" shape the mycoin pack
// member uses for its version handshake payloads.
func DecodeAdditionalData(raw map[string]any) (*AdditionalData, error) {
	if raw == nil {
		return nil, nil
	}

	var out AdditionalData
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &out,
		DecodeHook: stringToBigIntHook,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, err
	}
	return &out, nil
}

// stringToBigIntHook lets mapstructure populate *BigInt fields from
// the decimal strings the wire protocol uses for anything that can
// exceed 2^53.
func stringToBigIntHook(from, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(&BigInt{}) {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return ParseBigInt(v)
	case float64:
		return NewBigInt(int64(v)), nil
	default:
		return data, nil
	}
}
