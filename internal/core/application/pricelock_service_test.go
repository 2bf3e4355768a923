package application_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/x42protocol/xserverd/internal/core/application"
	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
	"github.com/x42protocol/xserverd/internal/infrastructure/storage/db/inmemory"
)

type priceLockFixture struct {
	service    *application.PriceLockService
	repo       *inmemory.PriceLockRepositoryImpl
	nodeRepo   *inmemory.ServerNodeRepositoryImpl
	aggregator *application.PriceAggregator
	ledger     *mockLedger
	oracle     *mockOracle
	peerClient *mockPeerClient
}

func newPriceLockFixture() *priceLockFixture {
	repo := inmemory.NewPriceLockRepositoryImpl()
	nodeRepo := inmemory.NewServerNodeRepositoryImpl()
	aggregator := application.NewPriceAggregator()
	ledger := &mockLedger{}
	oracle := &mockOracle{}
	peerClient := &mockPeerClient{}

	service := application.NewPriceLockService(application.PriceLockServiceOpts{
		Repo:         repo,
		NodeRepo:     nodeRepo,
		Aggregator:   aggregator,
		Ledger:       ledger,
		Oracle:       oracle,
		PeerClient:   peerClient,
		Currencies:   []string{"USD"},
		SignAddress:  "nodeSignAddr",
		FeeAddress:   "nodeFeeAddr",
		FeePercent:   decimal.NewFromInt(1),
		ExpireBlocks: 60,
	})
	return &priceLockFixture{
		service:    service,
		repo:       repo,
		nodeRepo:   nodeRepo,
		aggregator: aggregator,
		ledger:     ledger,
		oracle:     oracle,
		peerClient: peerClient,
	}
}

func TestCreatePriceLock(t *testing.T) {
	ctx := context.Background()

	t.Run("quote_at_consensus_price", func(t *testing.T) {
		f := newPriceLockFixture()
		f.aggregator.AddOwnSample("USD", decimal.RequireFromString("0.10"))
		f.ledger.On("GetBlockchainInfo", ctx).
			Return(&ports.BlockchainInfo{Blocks: 1000}, nil)
		f.oracle.On("Sign", ctx, mock.Anything).Return("quoteSig", nil)

		lock, err := f.service.CreatePriceLock(ctx, application.CreatePriceLockRequest{
			RequestAmount:   decimal.NewFromInt(5),
			RequestCurrency: "USD",
		}, "destAddr")
		require.NoError(t, err)
		require.Equal(t, "50", lock.DestinationAmount.String())
		require.Equal(t, "0.5", lock.FeeAmount.String())
		require.Equal(t, "destAddr", lock.DestinationAddress)
		require.Equal(t, "nodeFeeAddr", lock.FeeAddress)
		require.Equal(t, int64(1060), lock.ExpireBlock)
		require.Equal(t, "quoteSig", lock.PriceLockSignature)
		require.Equal(t, "nodeSignAddr", lock.SignAddress)

		stored, err := f.repo.GetPriceLock(ctx, lock.Id)
		require.NoError(t, err)
		require.True(t, stored.IsSigned())
		require.True(t, stored.IsNew())
	})

	t.Run("no_price_data", func(t *testing.T) {
		f := newPriceLockFixture()
		_, err := f.service.CreatePriceLock(ctx, application.CreatePriceLockRequest{
			RequestAmount:   decimal.NewFromInt(5),
			RequestCurrency: "USD",
		}, "destAddr")
		require.EqualError(t, err, application.ErrInsufficientPriceData.Error())
	})

	t.Run("coin_amount_cap", func(t *testing.T) {
		f := newPriceLockFixture()
		f.aggregator.AddOwnSample("USD", decimal.RequireFromString("0.10"))

		_, err := f.service.CreatePriceLock(ctx, application.CreatePriceLockRequest{
			RequestAmount:   decimal.NewFromInt(4_200_000),
			RequestCurrency: "USD",
		}, "destAddr")
		require.EqualError(t, err, application.ErrPriceLockCapExceeded.Error())
	})

	t.Run("signing_failure_rejects_the_lock", func(t *testing.T) {
		f := newPriceLockFixture()
		f.aggregator.AddOwnSample("USD", decimal.RequireFromString("0.10"))
		f.ledger.On("GetBlockchainInfo", ctx).
			Return(&ports.BlockchainInfo{Blocks: 1000}, nil)
		f.oracle.On("Sign", ctx, mock.Anything).
			Return("", context.DeadlineExceeded)

		_, err := f.service.CreatePriceLock(ctx, application.CreatePriceLockRequest{
			RequestAmount:   decimal.NewFromInt(5),
			RequestCurrency: "USD",
		}, "destAddr")
		require.EqualError(t, err, application.ErrPriceLockSigningFailed.Error())

		locks, err := f.repo.GetUnrelayedPriceLocks(ctx)
		require.NoError(t, err)
		require.Len(t, locks, 1)
		require.Equal(t, domain.PriceLockStatusRejected, locks[0].Status)
	})
}

func newSignedLock() *domain.PriceLock {
	lock := domain.NewPriceLock(
		decimal.NewFromInt(5), "USD",
		decimal.NewFromInt(50), "destAddr",
		decimal.RequireFromString("0.5"), "nodeFeeAddr",
		1060,
	)
	if err := lock.Sign("nodeSignAddr", "quoteSig"); err != nil {
		panic(err)
	}
	return lock
}

func paymentTx(lock *domain.PriceLock) *ports.RawTransaction {
	return &ports.RawTransaction{
		TxId: "paytx",
		Inputs: []ports.TxInput{
			{TxId: "spenttx", Vout: 0},
		},
		Outputs: []ports.TxOutput{
			{N: 0, Amount: lock.DestinationAmount, Addresses: []string{lock.DestinationAddress}},
			{N: 1, Amount: lock.FeeAmount, Addresses: []string{lock.FeeAddress}},
		},
	}
}

func TestSubmitPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown_lock", func(t *testing.T) {
		f := newPriceLockFixture()
		result := f.service.SubmitPayment(ctx, application.SubmitPaymentRequest{
			PriceLockId: "missing",
		})
		require.False(t, result.Success)
		require.Equal(t, application.PaymentErrorPriceLockNotFound, result.ErrorCode)
	})

	t.Run("valid_payment", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		f.ledger.On("GetRawTransaction", ctx, "paytx").Return(paymentTx(lock), nil)
		f.ledger.On("GetRawTransaction", ctx, "spenttx").Return(&ports.RawTransaction{
			Outputs: []ports.TxOutput{
				{N: 0, Amount: decimal.NewFromInt(60), Addresses: []string{"payerAddr"}},
			},
		}, nil)
		f.oracle.On("Verify", ctx, "payerAddr", "payeeSig", lock.Id).Return(true, nil)

		result := f.service.SubmitPayment(ctx, application.SubmitPaymentRequest{
			PriceLockId:    lock.Id,
			PayeeSignature: "payeeSig",
			TransactionId:  "paytx",
		})
		require.True(t, result.Success)
		require.Equal(t, application.PaymentErrorNone, result.ErrorCode)

		stored, err := f.repo.GetPriceLock(ctx, lock.Id)
		require.NoError(t, err)
		require.Equal(t, domain.PriceLockStatusWaitingForConfirmation, stored.Status)
		require.Equal(t, "payeeSig", stored.PayeeSignature)
		require.Equal(t, "paytx", stored.TransactionId)
	})

	t.Run("resubmitting_the_same_transaction", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, lock.ApplyPayment("payeeSig", "paytx"))
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		result := f.service.SubmitPayment(ctx, application.SubmitPaymentRequest{
			PriceLockId:   lock.Id,
			TransactionId: "paytx",
		})
		require.False(t, result.Success)
		require.Equal(t, application.PaymentErrorAlreadyExists, result.ErrorCode)
	})

	t.Run("paying_a_lock_that_is_not_new", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, lock.ApplyPayment("payeeSig", "paytx"))
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		result := f.service.SubmitPayment(ctx, application.SubmitPaymentRequest{
			PriceLockId:   lock.Id,
			TransactionId: "othertx",
		})
		require.Equal(t, application.PaymentErrorNotNew, result.ErrorCode)
	})

	t.Run("transaction_not_found", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		f.ledger.On("GetRawTransaction", ctx, "paytx").
			Return(nil, domain.ErrPriceLockNotFound)

		result := f.service.SubmitPayment(ctx, application.SubmitPaymentRequest{
			PriceLockId:   lock.Id,
			TransactionId: "paytx",
		})
		require.Equal(t, application.PaymentErrorTransactionError, result.ErrorCode)
	})

	t.Run("destination_output_missing", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		tx := paymentTx(lock)
		tx.Outputs[0].Amount = decimal.NewFromInt(49)
		f.ledger.On("GetRawTransaction", ctx, "paytx").Return(tx, nil)

		result := f.service.SubmitPayment(ctx, application.SubmitPaymentRequest{
			PriceLockId:   lock.Id,
			TransactionId: "paytx",
		})
		require.Equal(t, application.PaymentErrorTransactionDestNotFound, result.ErrorCode)
	})

	t.Run("fee_output_missing", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		tx := paymentTx(lock)
		tx.Outputs = tx.Outputs[:1]
		f.ledger.On("GetRawTransaction", ctx, "paytx").Return(tx, nil)

		result := f.service.SubmitPayment(ctx, application.SubmitPaymentRequest{
			PriceLockId:   lock.Id,
			TransactionId: "paytx",
		})
		require.Equal(t, application.PaymentErrorTransactionFeeNotFound, result.ErrorCode)
	})

	t.Run("payee_signature_not_from_an_input_owner", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		f.ledger.On("GetRawTransaction", ctx, "paytx").Return(paymentTx(lock), nil)
		f.ledger.On("GetRawTransaction", ctx, "spenttx").Return(&ports.RawTransaction{
			Outputs: []ports.TxOutput{
				{N: 0, Amount: decimal.NewFromInt(60), Addresses: []string{"payerAddr"}},
			},
		}, nil)
		f.oracle.On("Verify", ctx, "payerAddr", "forgedSig", lock.Id).Return(false, nil)

		result := f.service.SubmitPayment(ctx, application.SubmitPaymentRequest{
			PriceLockId:    lock.Id,
			PayeeSignature: "forgedSig",
			TransactionId:  "paytx",
		})
		require.Equal(t, application.PaymentErrorInvalidSignature, result.ErrorCode)
	})
}

func TestReceivePriceLock(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown_lock_is_inserted_as_relayed", func(t *testing.T) {
		f := newPriceLockFixture()
		remote := newSignedLock()

		require.NoError(t, f.service.ReceivePriceLock(ctx, remote))

		stored, err := f.repo.GetPriceLock(ctx, remote.Id)
		require.NoError(t, err)
		require.True(t, stored.Relayed)
		require.Equal(t, remote.Status, stored.Status)
	})

	t.Run("known_lock_only_moves_forward", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, lock.ApplyPayment("payeeSig", "paytx"))
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		// A stale New copy from a lagging peer must not rewind the state.
		stale := newSignedLock()
		stale.Id = lock.Id
		require.NoError(t, f.service.ReceivePriceLock(ctx, stale))

		stored, err := f.repo.GetPriceLock(ctx, lock.Id)
		require.NoError(t, err)
		require.Equal(t, domain.PriceLockStatusWaitingForConfirmation, stored.Status)
	})

	t.Run("remote_confirmation_is_applied", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, lock.ApplyPayment("payeeSig", "paytx"))
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		remote := *lock
		remote.Status = domain.PriceLockStatusConfirmed
		require.NoError(t, f.service.ReceivePriceLock(ctx, &remote))

		stored, err := f.repo.GetPriceLock(ctx, lock.Id)
		require.NoError(t, err)
		require.Equal(t, domain.PriceLockStatusConfirmed, stored.Status)
	})
}

func TestCheckMaturity(t *testing.T) {
	ctx := context.Background()

	newWaitingLock := func(txId string) *domain.PriceLock {
		lock := newSignedLock()
		if err := lock.ApplyPayment("payeeSig", txId); err != nil {
			panic(err)
		}
		return lock
	}

	t.Run("one_confirmation_confirms", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newWaitingLock("paytx")
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		f.ledger.On("GetRawTransaction", ctx, "paytx").
			Return(&ports.RawTransaction{TxId: "paytx", Confirmations: 1}, nil)

		require.NoError(t, f.service.CheckMaturity(ctx))

		stored, err := f.repo.GetPriceLock(ctx, lock.Id)
		require.NoError(t, err)
		require.Equal(t, domain.PriceLockStatusConfirmed, stored.Status)
	})

	t.Run("five_hundred_confirmations_mature", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newWaitingLock("paytx")
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		f.ledger.On("GetRawTransaction", ctx, "paytx").
			Return(&ports.RawTransaction{TxId: "paytx", Confirmations: 500}, nil)

		require.NoError(t, f.service.CheckMaturity(ctx))

		stored, err := f.repo.GetPriceLock(ctx, lock.Id)
		require.NoError(t, err)
		require.Equal(t, domain.PriceLockStatusMature, stored.Status)
	})

	t.Run("unconfirmed_transaction_leaves_the_lock_waiting", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newWaitingLock("paytx")
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		f.ledger.On("GetRawTransaction", ctx, "paytx").
			Return(&ports.RawTransaction{TxId: "paytx", Confirmations: 0}, nil)

		require.NoError(t, f.service.CheckMaturity(ctx))

		stored, err := f.repo.GetPriceLock(ctx, lock.Id)
		require.NoError(t, err)
		require.Equal(t, domain.PriceLockStatusWaitingForConfirmation, stored.Status)
	})
}

func TestRelayLocks(t *testing.T) {
	ctx := context.Background()

	t.Run("marks_relayed_even_when_peers_miss_the_push", func(t *testing.T) {
		f := newPriceLockFixture()
		lock := newSignedLock()
		require.NoError(t, f.repo.AddPriceLock(ctx, lock))

		peer := activeNode("bob", domain.TierThree)
		require.NoError(t, f.nodeRepo.AddServerNode(ctx, peer))

		f.peerClient.On("UpdatePriceLock", mock.Anything, mock.Anything, mock.Anything).
			Return(context.DeadlineExceeded)

		require.NoError(t, f.service.RelayLocks(ctx))

		unrelayed, err := f.repo.GetUnrelayedPriceLocks(ctx)
		require.NoError(t, err)
		require.Empty(t, unrelayed)
	})
}

func TestSamplePrices(t *testing.T) {
	ctx := context.Background()

	t.Run("own_sources_feed_the_own_window", func(t *testing.T) {
		f := newPriceLockFixture()
		source := &mockPriceSource{name: "exchange"}
		source.On("FetchPrice", ctx, "USD").
			Return(decimal.RequireFromString("0.10"), nil)

		service := application.NewPriceLockService(application.PriceLockServiceOpts{
			Repo:       f.repo,
			NodeRepo:   f.nodeRepo,
			Aggregator: f.aggregator,
			Ledger:     f.ledger,
			Oracle:     f.oracle,
			PeerClient: f.peerClient,
			Sources:    []ports.PriceSource{source},
			Currencies: []string{"USD"},
		})
		require.NoError(t, service.SampleOwnPrices(ctx))

		price, err := f.aggregator.ConsensusPrice("USD")
		require.NoError(t, err)
		require.Equal(t, "0.1", price.String())
	})

	t.Run("peer_samples_feed_the_network_window", func(t *testing.T) {
		f := newPriceLockFixture()
		peer := activeNode("bob", domain.TierThree)
		require.NoError(t, f.nodeRepo.AddServerNode(ctx, peer))

		f.peerClient.On("GetPrices", ctx, mock.Anything).Return([]ports.PriceSample{
			{Currency: "USD", Price: decimal.RequireFromString("0.11")},
			{Currency: "USD", Price: decimal.Zero}, // non-positive, dropped
		}, nil)

		require.NoError(t, f.service.SampleNetworkPrices(ctx))

		samples := f.aggregator.Samples("USD")
		require.Len(t, samples, 1)
		require.Equal(t, "0.11", samples[0].String())
	})
}

func activeNode(name string, tier domain.Tier) *domain.ServerNode {
	node, err := domain.NewServerNode(
		name, "203.0.113.20", 4242, domain.NetworkProtocolHTTP,
		name+"Key", name+"Sign", name+"Fee",
		tier, name+"Signature",
	)
	if err != nil {
		panic(err)
	}
	return node
}
