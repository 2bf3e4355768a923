package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/x42protocol/xserverd/internal/config"
	"github.com/x42protocol/xserverd/internal/core/application"
	"github.com/x42protocol/xserverd/internal/core/domain"
	"github.com/x42protocol/xserverd/internal/core/ports"
	"github.com/x42protocol/xserverd/internal/infrastructure/pricesource"
	dbbadger "github.com/x42protocol/xserverd/internal/infrastructure/storage/db/badger"
	httpinterface "github.com/x42protocol/xserverd/internal/interfaces/http"
	"github.com/x42protocol/xserverd/pkg/ledgerclient"
	"github.com/x42protocol/xserverd/pkg/xsclient"
)

var version = "0.1.0"

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	repoManager, err := dbbadger.NewRepoManager(
		filepath.Join(config.GetDatadir(), config.DbLocation), nil,
	)
	if err != nil {
		log.WithError(err).Fatal("error while opening db")
	}
	defer repoManager.Close()

	ledger := ledgerclient.NewClient(config.GetString(config.NodeURLKey))
	oracle := application.NewSignatureOracle(ledger, config.GetString(config.SignAddressKey))
	peerClient := xsclient.NewClient()
	currencies := config.GetStringSlice(config.PricePairsKey)

	self, err := domain.NewServerNode(
		config.GetString(config.ProfileNameKey),
		config.GetString(config.PublicAddressKey),
		uint32(config.GetInt(config.PublicPortKey)),
		uint32(config.GetInt(config.PublicProtocolKey)),
		config.GetString(config.KeyAddressKey),
		config.GetString(config.SignAddressKey),
		config.GetString(config.FeeAddressKey),
		domain.Tier(config.GetInt(config.TierKey)),
		"",
	)
	if err != nil {
		log.WithError(err).Fatal("invalid node identity")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signature, err := signSelf(ctx, oracle, self)
	if err != nil {
		log.WithError(err).Fatal("error while signing node attestation")
	}
	self.Signature = signature

	membership := application.NewMembershipService(application.MembershipServiceOpts{
		Repo:       repoManager.ServerNodeRepository(),
		Ledger:     ledger,
		Oracle:     oracle,
		PeerClient: peerClient,
		TierRequirements: application.TierRequirements{
			domain.TierTwo:   decimal.NewFromFloat(config.GetFloat(config.Tier2CollateralKey)),
			domain.TierThree: decimal.NewFromFloat(config.GetFloat(config.Tier3CollateralKey)),
		},
		DowntimeGrace: time.Duration(config.GetInt(config.DowntimeGraceKey)) * time.Second,
		BlockGrace:    int64(config.GetInt(config.BlockGraceKey)),
		HeightGrace:   int64(config.GetInt(config.HeightGraceKey)),
	})

	priceLocks := application.NewPriceLockService(application.PriceLockServiceOpts{
		Repo:         repoManager.PriceLockRepository(),
		NodeRepo:     repoManager.ServerNodeRepository(),
		Aggregator:   application.NewPriceAggregator(),
		Ledger:       ledger,
		Oracle:       oracle,
		PeerClient:   peerClient,
		Sources:      pricesource.WellKnownSources(),
		Currencies:   currencies,
		SignAddress:  config.GetString(config.SignAddressKey),
		FeeAddress:   config.GetString(config.FeeAddressKey),
		FeePercent:   decimal.NewFromFloat(config.GetFloat(config.FeePercentKey)),
		ExpireBlocks: int64(config.GetInt(config.PriceLockExpireBlocksKey)),
	})

	profiles := application.NewProfileService(application.ProfileServiceOpts{
		Repo:        repoManager.ProfileRepository(),
		NodeRepo:    repoManager.ServerNodeRepository(),
		PriceLocks:  priceLocks,
		Ledger:      ledger,
		Oracle:      oracle,
		PeerClient:  peerClient,
		FeeAmount:   decimal.NewFromFloat(config.GetFloat(config.ProfileFeeAmountKey)),
		FeeCurrency: config.GetString(config.ProfileFeePairKey),
		FeeAddress:  config.GetString(config.FeeAddressKey),
	})

	network := application.NewNetworkService(application.NetworkServiceOpts{
		Membership: membership,
		PriceLocks: priceLocks,
		Profiles:   profiles,
		Ledger:     ledger,
		NodeRepo:   repoManager.ServerNodeRepository(),
		Self:       self,
		Seeds:      parseSeeds(config.GetStringSlice(config.SeedNodesKey)),
	})

	scheduler := application.NewScheduler()
	network.RegisterTasks(scheduler)
	scheduler.Start(ctx)

	go func() {
		if err := network.WaitUntilReady(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("startup sequencing aborted")
		}
	}()

	httpSvc := httpinterface.NewService(httpinterface.ServiceOpts{
		Network:    network,
		Ledger:     ledger,
		Currencies: currencies,
		Version:    version,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.GetInt(config.ListenPortKey)),
		Handler: httpSvc.Router(),
	}
	go func() {
		log.Infof("peer interface is listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("error listening on peer interface")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("error while stopping peer interface")
	}
	scheduler.Wait()

	log.Info("exiting")
}

// signSelf retries until the wallet is reachable. The attestation cannot be
// produced without the node, and the daemon is useless without it.
func signSelf(
	ctx context.Context, oracle ports.SignatureOracle, self *domain.ServerNode,
) (string, error) {
	for {
		signature, err := oracle.Sign(ctx, self.SignaturePayload())
		if err == nil {
			return signature, nil
		}
		log.WithError(err).Info("waiting for wallet to sign node attestation")
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
}

// parseSeeds turns host:port entries into seed peer records. Entries that do
// not parse are skipped with a warning.
func parseSeeds(entries []string) []*domain.ServerNode {
	seeds := make([]*domain.ServerNode, 0, len(entries))
	for _, entry := range entries {
		host, portStr, err := net.SplitHostPort(entry)
		if err != nil {
			log.Warnf("skipping malformed seed %q", entry)
			continue
		}
		port, err := strconv.ParseUint(portStr, 10, 32)
		if err != nil {
			log.Warnf("skipping malformed seed %q", entry)
			continue
		}
		seeds = append(seeds, &domain.ServerNode{
			ProfileName:     "seed",
			NetworkAddress:  host,
			NetworkPort:     uint32(port),
			NetworkProtocol: domain.NetworkProtocolHTTP,
			Tier:            domain.TierSeed,
			Active:          true,
		})
	}
	return seeds
}
