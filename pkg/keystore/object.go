package keystore

import (
	"context"
	"crypto/x509"

	"github.com/StricklySoft/stricklysoft-jwt/pkg/clients/minio"
	sserr "github.com/StricklySoft/stricklysoft-jwt/pkg/errors"
)

// PEMContentType is the content type written by [ObjectStore.Put].
const PEMContentType = "application/x-pem-file"

// Objects is the subset of [minio.Client] used by [ObjectStore].
type Objects interface {
	ReadObject(ctx context.Context, bucket, name string) ([]byte, error)
	WriteObject(ctx context.Context, bucket, name, contentType string, data []byte) error
}

var _ Objects = (*minio.Client)(nil)

// ObjectStore maps a trust store reference to a bucket and an alias to the
// object "<alias>.pem" inside it.
type ObjectStore struct {
	objects Objects
}

var _ Service = (*ObjectStore)(nil)

// NewObjectStore returns a store backed by objects.
func NewObjectStore(objects Objects) *ObjectStore {
	return &ObjectStore{objects: objects}
}

func objectName(alias string) string { return alias + ".pem" }

// Put validates pemData and writes it to the bucket.
func (s *ObjectStore) Put(ctx context.Context, trustStoreRef, alias string, pemData []byte) error {
	if _, err := ParseCertificatePEM(pemData); err != nil {
		return err
	}
	return s.objects.WriteObject(ctx, trustStoreRef, objectName(alias), PEMContentType, pemData)
}

// Certificate implements [Service].
func (s *ObjectStore) Certificate(ctx context.Context, trustStoreRef, alias string) (*x509.Certificate, error) {
	data, err := s.objects.ReadObject(ctx, trustStoreRef, objectName(alias))
	if err != nil {
		if sserr.IsNotFound(err) {
			return nil, notFound(trustStoreRef, alias)
		}
		return nil, err
	}
	return ParseCertificatePEM(data)
}
