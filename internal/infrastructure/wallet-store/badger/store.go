package badgerstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vulpemventures/funder/internal/core/domain"
	"github.com/vulpemventures/funder/internal/core/ports"
)

const gcInterval = 30 * time.Minute

// walletKeyRecord is the stored form of a wallet key. Position keeps the
// order in which keys were saved.
type walletKeyRecord struct {
	Position int
	ClientID string
	WifKey   string
}

type store struct {
	db     *badgerhold.Store
	lock   *sync.Mutex
	chStop chan struct{}

	log func(format string, a ...interface{})
}

// NewStore opens (or creates) the badger db in the given dir. With an empty
// dir the db lives in memory.
func NewStore(dbDir string, logger badger.Logger) (ports.WalletStore, error) {
	db, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening wallet store db: %w", err)
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("badger wallet store: %s", format)
		log.Debugf(format, a...)
	}

	s := &store{db, &sync.Mutex{}, make(chan struct{}), logFn}
	if len(dbDir) > 0 {
		go s.runGC()
	}
	return s, nil
}

func (s *store) Load(_ context.Context) ([]domain.WalletKey, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	var records []walletKeyRecord
	if err := s.db.Find(&records, &badgerhold.Query{}); err != nil && err != badgerhold.ErrNotFound {
		return nil, err
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Position < records[j].Position
	})

	keys := make([]domain.WalletKey, 0, len(records))
	for _, r := range records {
		keys = append(keys, domain.WalletKey{ClientID: r.ClientID, WifKey: r.WifKey})
	}
	return keys, nil
}

func (s *store) Save(_ context.Context, keys []domain.WalletKey) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	save := func(tx *badger.Txn) error {
		if err := s.db.TxDeleteMatching(
			tx, &walletKeyRecord{}, &badgerhold.Query{},
		); err != nil && err != badgerhold.ErrNotFound {
			return err
		}
		for i, k := range keys {
			record := walletKeyRecord{i, k.ClientID, k.WifKey}
			if err := s.db.TxInsert(tx, k.ClientID, record); err != nil {
				if err == badgerhold.ErrKeyExists {
					return fmt.Errorf("%w: %s", domain.ErrDuplicateClient, k.ClientID)
				}
				return err
			}
		}
		return nil
	}

	if err := s.db.Badger().Update(save); err != nil {
		return err
	}

	s.log("saved %d wallet keys", len(keys))
	return nil
}

func (s *store) Close() {
	close(s.chStop)
	s.db.Close()
}

func (s *store) runGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.chStop:
			return
		case <-ticker.C:
			if err := s.db.Badger().RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
				log.Warnf("garbage collector: %s", err)
			}
		}
	}
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          badgerhold.DefaultEncode,
		Decoder:          badgerhold.DefaultDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
