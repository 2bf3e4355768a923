package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

const (
	// ListenPortKey is the port where the peer HTTP interface will listen on
	ListenPortKey = "LISTEN_PORT"
	// DatadirKey is the local data directory to store the internal state of the daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// NodeURLKey is the base url of the x42 full node REST API
	NodeURLKey = "NODE_URL"
	// ProfileNameKey is the registered profile name this node advertises
	ProfileNameKey = "PROFILE_NAME"
	// PublicAddressKey is the routable address peers use to reach this node
	PublicAddressKey = "PUBLIC_ADDRESS"
	// PublicPortKey is the port advertised together with PublicAddressKey
	PublicPortKey = "PUBLIC_PORT"
	// PublicProtocolKey is 1 for http or 2 for https
	PublicProtocolKey = "PUBLIC_PROTOCOL"
	// KeyAddressKey is the collateral address proving this node's stake
	KeyAddressKey = "KEY_ADDRESS"
	// SignAddressKey is the wallet address used to sign outgoing attestations
	SignAddressKey = "SIGN_ADDRESS"
	// FeeAddressKey is the address collecting price lock fees
	FeeAddressKey = "FEE_ADDRESS"
	// TierKey is the membership tier this node claims, backed by collateral
	TierKey = "TIER"
	// SeedNodesKey is the list of bootstrap peers as host:port pairs
	SeedNodesKey = "SEED_NODES"
	// PricePairsKey is the list of quote currencies sampled from the price sources
	PricePairsKey = "PRICE_PAIRS"
	// FeePercentKey is the fee charged on a price lock, as a percentage of the destination amount
	FeePercentKey = "FEE_PERCENT"
	// PriceLockExpireBlocksKey is how many blocks a new price lock stays payable
	PriceLockExpireBlocksKey = "PRICELOCK_EXPIRE_BLOCKS"
	// ProfileFeeAmountKey is the fiat amount charged for a profile registration
	ProfileFeeAmountKey = "PROFILE_FEE_AMOUNT"
	// ProfileFeePairKey is the currency ProfileFeeAmountKey is denominated in
	ProfileFeePairKey = "PROFILE_FEE_PAIR"
	// DowntimeGraceKey is the duration in seconds a member may stay unreachable before eviction
	DowntimeGraceKey = "DOWNTIME_GRACE"
	// BlockGraceKey is the confirmation depth used when measuring collateral
	BlockGraceKey = "BLOCK_GRACE"
	// HeightGraceKey is how many blocks behind the local tip a peer may report and still count as healthy
	HeightGraceKey = "HEIGHT_GRACE"
	// Tier2CollateralKey is the minimum coin balance backing a tier 2 claim
	Tier2CollateralKey = "TIER2_COLLATERAL"
	// Tier3CollateralKey is the minimum coin balance backing a tier 3 claim
	Tier3CollateralKey = "TIER3_COLLATERAL"

	DbLocation = "db"
)

var vip *viper.Viper

func defaultDatadir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".xserverd"
	}
	return filepath.Join(home, ".xserverd")
}

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("XSERVER")
	vip.AutomaticEnv()

	vip.SetDefault(ListenPortKey, 4242)
	vip.SetDefault(DatadirKey, defaultDatadir())
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(NodeURLKey, "http://127.0.0.1:42220")
	vip.SetDefault(PublicPortKey, 4242)
	vip.SetDefault(PublicProtocolKey, int(domain.NetworkProtocolHTTP))
	vip.SetDefault(TierKey, int(domain.TierTwo))
	vip.SetDefault(PricePairsKey, []string{"USD"})
	vip.SetDefault(FeePercentKey, 1.0)
	vip.SetDefault(PriceLockExpireBlocksKey, 60)
	vip.SetDefault(ProfileFeeAmountKey, 5)
	vip.SetDefault(ProfileFeePairKey, "USD")
	vip.SetDefault(DowntimeGraceKey, 1800)
	vip.SetDefault(BlockGraceKey, 6)
	vip.SetDefault(HeightGraceKey, 6)
	vip.SetDefault(Tier2CollateralKey, 20000)
	vip.SetDefault(Tier3CollateralKey, 100000)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetFloat(key string) float64 {
	return vip.GetFloat64(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	for _, key := range []string{
		ProfileNameKey, PublicAddressKey, KeyAddressKey,
		SignAddressKey, FeeAddressKey,
	} {
		if !vip.IsSet(key) {
			return fmt.Errorf("missing %s", key)
		}
	}

	tier := domain.Tier(GetInt(TierKey))
	if tier != domain.TierTwo && tier != domain.TierThree {
		return fmt.Errorf("%s must be 2 or 3", TierKey)
	}

	protocol := uint32(GetInt(PublicProtocolKey))
	if protocol != domain.NetworkProtocolHTTP && protocol != domain.NetworkProtocolHTTPS {
		return fmt.Errorf("%s must be 1 (http) or 2 (https)", PublicProtocolKey)
	}

	if !domain.IsRoutableAddress(GetString(PublicAddressKey)) {
		return fmt.Errorf("%s must be a routable address", PublicAddressKey)
	}

	feePercent := GetFloat(FeePercentKey)
	if feePercent < 0 || feePercent >= 100 {
		return fmt.Errorf("%s must be in [0, 100)", FeePercentKey)
	}

	if len(GetStringSlice(PricePairsKey)) <= 0 {
		return fmt.Errorf("%s must name at least one currency", PricePairsKey)
	}

	return nil
}

func initDatadir() error {
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
