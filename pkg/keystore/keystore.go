// Package keystore resolves trusted X.509 certificates by trust store
// reference and alias. The signing-key resolver uses it to obtain the public
// key for asymmetric algorithms when no JWK endpoint is configured.
//
// Three backends are provided: [StaticStore] holds PEM certificates in
// memory, [PostgresStore] reads them from a PostgreSQL table, and
// [ObjectStore] reads one PEM object per alias from an S3-compatible bucket.
package keystore

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"sync"

	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

// Service looks up a certificate. Implementations return a
// [sserr.CodeNotFound] error when the alias is unknown.
type Service interface {
	Certificate(ctx context.Context, trustStoreRef, alias string) (*x509.Certificate, error)
}

// ParseCertificatePEM decodes the first CERTIFICATE block in data.
func ParseCertificatePEM(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, sserr.New(sserr.CodeValidationFormat, "keystore: no CERTIFICATE block in PEM data")
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, sserr.Wrap(err, sserr.CodeValidationFormat, "keystore: invalid certificate")
		}
		return cert, nil
	}
}

func notFound(trustStoreRef, alias string) *sserr.Error {
	return sserr.NotFoundf("keystore: alias %q not found in trust store %q", alias, trustStoreRef).
		WithDetails(map[string]any{"alias": alias, "trust_store": trustStoreRef})
}

// StaticStore is an in-memory [Service]. It is safe for concurrent use.
type StaticStore struct {
	mu    sync.RWMutex
	certs map[string]map[string]*x509.Certificate
}

var _ Service = (*StaticStore)(nil)

// NewStaticStore returns an empty store.
func NewStaticStore() *StaticStore {
	return &StaticStore{certs: make(map[string]map[string]*x509.Certificate)}
}

// Add registers cert under trustStoreRef/alias, replacing any previous entry.
func (s *StaticStore) Add(trustStoreRef, alias string, cert *x509.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	store, ok := s.certs[trustStoreRef]
	if !ok {
		store = make(map[string]*x509.Certificate)
		s.certs[trustStoreRef] = store
	}
	store[alias] = cert
}

// AddPEM parses pemData and registers the certificate.
func (s *StaticStore) AddPEM(trustStoreRef, alias string, pemData []byte) error {
	cert, err := ParseCertificatePEM(pemData)
	if err != nil {
		return err
	}
	s.Add(trustStoreRef, alias, cert)
	return nil
}

// Certificate implements [Service].
func (s *StaticStore) Certificate(_ context.Context, trustStoreRef, alias string) (*x509.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cert, ok := s.certs[trustStoreRef][alias]; ok {
		return cert, nil
	}
	return nil, notFound(trustStoreRef, alias)
}
