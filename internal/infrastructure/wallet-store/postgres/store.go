package pgstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/funder/internal/core/domain"
	"github.com/vulpemventures/funder/internal/core/ports"
)

const (
	postgresDriver             = "postgres"
	insecureDataSourceTemplate = "postgresql://%s:%s@%s:%d/%s?sslmode=disable"
	connectTimeout             = 10 * time.Second
	//uniqueViolation is a postgres error code for unique constraint violation
	uniqueViolation = "23505"

	selectWalletKeys = "SELECT client_id, wif_key FROM wallet_key ORDER BY position"
	deleteWalletKeys = "DELETE FROM wallet_key"
	insertWalletKey  = "INSERT INTO wallet_key (client_id, wif_key, position) VALUES ($1, $2, $3)"
)

//go:embed migration/*.sql
var migrations embed.FS

type DbConfig struct {
	DbUser     string
	DbPassword string
	DbHost     string
	DbPort     int
	DbName     string
}

func (c DbConfig) validate() error {
	if len(c.DbUser) <= 0 {
		return fmt.Errorf("missing db user")
	}
	if len(c.DbHost) <= 0 {
		return fmt.Errorf("missing db host")
	}
	if c.DbPort <= 0 {
		return fmt.Errorf("invalid db port")
	}
	if len(c.DbName) <= 0 {
		return fmt.Errorf("missing db name")
	}
	return nil
}

type store struct {
	pgxPool *pgxpool.Pool

	log func(format string, a ...interface{})
}

// NewStore connects to the given postgres db, applies the pending
// migrations and returns a wallet store backed by the wallet_key table.
func NewStore(dbConfig DbConfig) (ports.WalletStore, error) {
	if err := dbConfig.validate(); err != nil {
		return nil, fmt.Errorf("invalid db config: %s", err)
	}
	return NewStoreFromDataSource(insecureDataSourceStr(dbConfig))
}

// NewStoreFromDataSource is like NewStore, but takes a postgres connection
// string.
func NewStoreFromDataSource(dataSource string) (ports.WalletStore, error) {
	pgxPool, err := connect(dataSource)
	if err != nil {
		return nil, err
	}

	if err = migrateDb(dataSource); err != nil {
		pgxPool.Close()
		return nil, err
	}

	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("postgres wallet store: %s", format)
		log.Debugf(format, a...)
	}

	return &store{pgxPool, logFn}, nil
}

func (s *store) Load(ctx context.Context) ([]domain.WalletKey, error) {
	rows, err := s.pgxPool.Query(ctx, selectWalletKeys)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make([]domain.WalletKey, 0)
	for rows.Next() {
		var key domain.WalletKey
		if err := rows.Scan(&key.ClientID, &key.WifKey); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *store) Save(ctx context.Context, keys []domain.WalletKey) error {
	conn, err := s.pgxPool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, deleteWalletKeys); err != nil {
		return err
	}
	for i, key := range keys {
		if _, err := tx.Exec(
			ctx, insertWalletKey, key.ClientID, key.WifKey, i,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateClient, key.ClientID)
			}
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.log("saved %d wallet keys", len(keys))
	return nil
}

func (s *store) Close() {
	s.pgxPool.Close()
}

func connect(dataSource string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	return pgxpool.Connect(ctx, dataSource)
}

func migrateDb(dataSource string) error {
	pg := postgres.Postgres{}

	d, err := pg.Open(dataSource)
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations, "migration")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, postgresDriver, d)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

// insecureDataSourceStr converts database configuration params to connection string
func insecureDataSourceStr(dbConfig DbConfig) string {
	return fmt.Sprintf(
		insecureDataSourceTemplate,
		dbConfig.DbUser,
		dbConfig.DbPassword,
		dbConfig.DbHost,
		dbConfig.DbPort,
		dbConfig.DbName,
	)
}
