package deploy

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
	"github/chapool/go-stark-signer/internal/wallet/starknet"
)

//go:embed migrations/*.sql
var migrations embed.FS

func migrationSource() *migrate.EmbedFileSystemMigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       "migrations",
	}
}

// Migrate applies all pending up migrations and returns how many ran.
func Migrate(db *sql.DB) (int, error) {
	n, err := migrate.Exec(db, "postgres", migrationSource(), migrate.Up)
	if err != nil {
		return 0, errors.Wrap(err, "failed to apply migrations")
	}
	return n, nil
}

// PostgresStore keeps deployment records in the account_deployments table.
type PostgresStore struct {
	db *sql.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, address *felt.Felt) (*Record, error) {
	if address == nil {
		return nil, ErrRecordNotFound
	}

	var (
		classHash, salt, status string
		txHash                  sql.NullString
		updatedAt               time.Time
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT class_hash, salt, tx_hash, status, updated_at
		FROM account_deployments
		WHERE address = $1
	`, starknet.FeltToHex(address)).Scan(&classHash, &salt, &txHash, &status, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, errors.Wrap(err, "failed to query deployment record")
	}

	rec := &Record{
		Address:   address,
		Status:    RecordStatus(status),
		UpdatedAt: updatedAt,
	}
	if rec.ClassHash, err = starknet.ParseFelt(classHash); err != nil {
		return nil, errors.Wrap(err, "invalid class_hash column")
	}
	if rec.Salt, err = starknet.ParseFelt(salt); err != nil {
		return nil, errors.Wrap(err, "invalid salt column")
	}
	if txHash.Valid {
		if rec.TxHash, err = starknet.ParseFelt(txHash.String); err != nil {
			return nil, errors.Wrap(err, "invalid tx_hash column")
		}
	}

	return rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	if rec.Address == nil || rec.ClassHash == nil || rec.Salt == nil {
		return errors.New("record address, class hash and salt are required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	var txHash sql.NullString
	if rec.TxHash != nil {
		txHash = sql.NullString{String: starknet.FeltToHex(rec.TxHash), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_deployments (address, class_hash, salt, tx_hash, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (address) DO UPDATE SET
			class_hash = EXCLUDED.class_hash,
			salt = EXCLUDED.salt,
			tx_hash = EXCLUDED.tx_hash,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`,
		starknet.FeltToHex(rec.Address),
		starknet.FeltToHex(rec.ClassHash),
		starknet.FeltToHex(rec.Salt),
		txHash,
		string(rec.Status),
		rec.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save deployment record")
	}

	return nil
}
