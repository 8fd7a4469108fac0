package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/funder/internal/core/domain"
	"github.com/vulpemventures/funder/internal/core/ports"
)

const filePerm = 0600

type fileContents struct {
	Clients []domain.WalletKey `toml:"clients"`
}

type store struct {
	filename string
	lock     *sync.Mutex

	warn func(err error, format string, a ...interface{})
}

// NewStore returns a wallet store persisting the keys as a TOML document
// at the given path. The file is rewritten entirely on every save.
func NewStore(filename string) (ports.WalletStore, error) {
	if len(filename) <= 0 {
		return nil, fmt.Errorf("missing filename")
	}
	if dir := filepath.Dir(filename); len(dir) > 0 {
		if err := os.MkdirAll(dir, os.ModeDir|0755); err != nil {
			return nil, err
		}
	}

	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("file wallet store: %s", format)
		log.WithError(err).Warnf(format, a...)
	}

	return &store{filename, &sync.Mutex{}, warnFn}, nil
}

func (s *store) Load(_ context.Context) ([]domain.WalletKey, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	buf, err := os.ReadFile(s.filename)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.warn(err, "failed to read %s, starting with no dynamic wallets", s.filename)
		}
		return []domain.WalletKey{}, nil
	}

	var contents fileContents
	if err := toml.Unmarshal(buf, &contents); err != nil {
		s.warn(err, "failed to parse %s, starting with no dynamic wallets", s.filename)
		return []domain.WalletKey{}, nil
	}
	if contents.Clients == nil {
		return []domain.WalletKey{}, nil
	}
	return contents.Clients, nil
}

func (s *store) Save(_ context.Context, keys []domain.WalletKey) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	buf, err := toml.Marshal(fileContents{keys})
	if err != nil {
		return err
	}

	tmpFile := s.filename + ".tmp"
	if err := os.WriteFile(tmpFile, buf, filePerm); err != nil {
		return err
	}
	return os.Rename(tmpFile, s.filename)
}

func (s *store) Close() {}
