package ports

import (
	"context"

	"github.com/shopspring/decimal"
)

// BlockchainInfo is the subset of the node's chain state this engine cares
// about.
type BlockchainInfo struct {
	Blocks               int64
	Headers              int64
	InitialBlockDownload bool
}

// TxInput references the output being spent by a transaction input.
type TxInput struct {
	TxId string
	Vout uint32
}

// TxOutput is a resolved transaction output.
type TxOutput struct {
	N         uint32
	Amount    decimal.Decimal
	Addresses []string
}

// RawTransaction is a decoded transaction with its chain placement, if any.
type RawTransaction struct {
	TxId          string
	BlockHeight   int64
	Confirmations int64
	Inputs        []TxInput
	Outputs       []TxOutput
}

// LedgerClient is the thin client to the node providing blockchain data,
// wallet signing and transaction broadcast. It is the only binding source of
// truth for payments.
type LedgerClient interface {
	GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error)
	// GetAddressBalance returns the confirmed balance at an address counting
	// only outputs with at least minConf confirmations.
	GetAddressBalance(ctx context.Context, address string, minConf int64) (decimal.Decimal, error)
	GetRawTransaction(ctx context.Context, txId string) (*RawTransaction, error)
	DecodeRawTransaction(ctx context.Context, txHex string) (*RawTransaction, error)
	SendRawTransaction(ctx context.Context, txHex string) (string, error)
	SignMessage(ctx context.Context, address, message string) (string, error)
	VerifyMessage(ctx context.Context, address, signature, message string) (bool, error)
	// GetAddressIndexerTip returns the height the address indexer has caught
	// up to.
	GetAddressIndexerTip(ctx context.Context) (int64, error)
}

// SignatureOracle verifies peer attestations and signs outgoing ones on
// behalf of this node.
type SignatureOracle interface {
	Sign(ctx context.Context, message string) (string, error)
	Verify(ctx context.Context, address, signature, message string) (bool, error)
}
