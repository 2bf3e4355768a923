package dbbadger

import (
	"encoding/json"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/x42protocol/xserverd/internal/core/domain"
)

// RepoManager opens the embedded store and hands out the repository
// implementations over it.
type RepoManager struct {
	store *badgerhold.Store

	serverNodeRepo domain.ServerNodeRepository
	priceLockRepo  domain.PriceLockRepository
	profileRepo    domain.ProfileRepository
}

// NewRepoManager opens (or creates) the store under baseDbDir.
func NewRepoManager(baseDbDir string, logger badger.Logger) (*RepoManager, error) {
	store, err := createDb(filepath.Join(baseDbDir, "xserver"), logger)
	if err != nil {
		return nil, err
	}

	return &RepoManager{
		store:          store,
		serverNodeRepo: newServerNodeRepositoryImpl(store),
		priceLockRepo:  newPriceLockRepositoryImpl(store),
		profileRepo:    newProfileRepositoryImpl(store),
	}, nil
}

// ServerNodeRepository ...
func (m *RepoManager) ServerNodeRepository() domain.ServerNodeRepository {
	return m.serverNodeRepo
}

// PriceLockRepository ...
func (m *RepoManager) PriceLockRepository() domain.PriceLockRepository {
	return m.priceLockRepo
}

// ProfileRepository ...
func (m *RepoManager) ProfileRepository() domain.ProfileRepository {
	return m.profileRepo
}

// Close releases the underlying badger store.
func (m *RepoManager) Close() {
	if err := m.store.Close(); err != nil {
		log.WithError(err).Warn("db: closing store")
	}
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	return badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}

// JSONEncode is the store codec; JSON keeps decimal amounts portable.
func JSONEncode(value interface{}) ([]byte, error) {
	return json.Marshal(value)
}

// JSONDecode ...
func JSONDecode(data []byte, value interface{}) error {
	return json.Unmarshal(data, value)
}
