package application

import (
	"context"

	"github.com/x42protocol/xserverd/internal/core/ports"
)

type signatureOracle struct {
	ledger      ports.LedgerClient
	signAddress string
}

// NewSignatureOracle returns an oracle that signs attestations with this
// node's sign address and verifies signatures through the wallet.
func NewSignatureOracle(ledger ports.LedgerClient, signAddress string) ports.SignatureOracle {
	return &signatureOracle{ledger: ledger, signAddress: signAddress}
}

func (o *signatureOracle) Sign(ctx context.Context, message string) (string, error) {
	return o.ledger.SignMessage(ctx, o.signAddress, message)
}

func (o *signatureOracle) Verify(
	ctx context.Context, address, signature, message string,
) (bool, error) {
	return o.ledger.VerifyMessage(ctx, address, signature, message)
}
