package keystore

import (
	"context"
	"crypto/x509"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/postgres"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS jwt_truststore_certificates (
	trust_store     TEXT        NOT NULL,
	alias           TEXT        NOT NULL,
	certificate_pem TEXT        NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (trust_store, alias)
)`

	selectCertificateSQL = `SELECT certificate_pem FROM jwt_truststore_certificates WHERE trust_store = $1 AND alias = $2`

	upsertCertificateSQL = `INSERT INTO jwt_truststore_certificates (trust_store, alias, certificate_pem)
VALUES ($1, $2, $3)
ON CONFLICT (trust_store, alias) DO UPDATE SET certificate_pem = EXCLUDED.certificate_pem, updated_at = now()`

	selectAliasesSQL = `SELECT alias FROM jwt_truststore_certificates WHERE trust_store = $1 ORDER BY alias`
)

// Querier is the subset of [postgres.Client] used by [PostgresStore].
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Querier = (*postgres.Client)(nil)

// PostgresStore reads certificates from the jwt_truststore_certificates
// table. Certificates are parsed on every lookup; callers that need
// caching wrap the store.
type PostgresStore struct {
	db Querier
}

var _ Service = (*PostgresStore)(nil)

// NewPostgresStore returns a store backed by db.
func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the certificate table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createTableSQL); err != nil {
		return sserr.Wrap(err, sserr.CodeInternalDatabase, "keystore: creating certificate table failed")
	}
	return nil
}

// Put validates pemData and stores it under trustStoreRef/alias.
func (s *PostgresStore) Put(ctx context.Context, trustStoreRef, alias string, pemData []byte) error {
	if _, err := ParseCertificatePEM(pemData); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, upsertCertificateSQL, trustStoreRef, alias, string(pemData)); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalDatabase, "keystore: storing alias %q failed", alias)
	}
	return nil
}

// Certificate implements [Service].
func (s *PostgresStore) Certificate(ctx context.Context, trustStoreRef, alias string) (*x509.Certificate, error) {
	var pemData string
	err := s.db.QueryRow(ctx, selectCertificateSQL, trustStoreRef, alias).Scan(&pemData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(trustStoreRef, alias)
	}
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeInternalDatabase,
			"keystore: loading alias %q from trust store %q failed", alias, trustStoreRef)
	}
	return ParseCertificatePEM([]byte(pemData))
}

// Aliases lists the aliases stored under trustStoreRef in sorted order.
func (s *PostgresStore) Aliases(ctx context.Context, trustStoreRef string) ([]string, error) {
	rows, err := s.db.Query(ctx, selectAliasesSQL, trustStoreRef)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeInternalDatabase,
			"keystore: listing aliases of trust store %q failed", trustStoreRef)
	}
	aliases, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalDatabase, "keystore: listing aliases failed")
	}
	return aliases, nil
}
