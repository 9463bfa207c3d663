package artifacts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kalamgit143/validAIte-sub004/pkg/canonicalize"
	"github.com/kalamgit143/validAIte-sub004/pkg/certification"
	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// Archive stores issued certificates and evidence packs on top of a Store.
type Archive struct {
	store Store
}

func NewArchive(store Store) *Archive {
	return &Archive{store: store}
}

// PutCertificate archives the canonical JSON form of cert. The certificate
// hash is checked first so a tampered certificate is never archived.
func (a *Archive) PutCertificate(ctx context.Context, cert *contracts.AuthorizationCertificate) (string, error) {
	if a == nil || a.store == nil {
		return "", fmt.Errorf("artifacts: archive not configured")
	}
	data, err := certificateBytes(cert)
	if err != nil {
		return "", err
	}
	return a.store.Put(ctx, data)
}

// CertificateRef returns the reference PutCertificate stores cert under,
// without storing anything.
func CertificateRef(cert *contracts.AuthorizationCertificate) (string, error) {
	data, err := certificateBytes(cert)
	if err != nil {
		return "", err
	}
	ref, _ := refOf(data)
	return ref, nil
}

func certificateBytes(cert *contracts.AuthorizationCertificate) ([]byte, error) {
	if err := certification.Verify(cert); err != nil {
		return nil, fmt.Errorf("artifacts: refusing certificate: %w", err)
	}
	data, err := canonicalize.JCS(cert)
	if err != nil {
		return nil, fmt.Errorf("artifacts: canonicalize certificate: %w", err)
	}
	return data, nil
}

// GetCertificate loads an archived certificate and re-verifies its hash.
func (a *Archive) GetCertificate(ctx context.Context, ref string) (*contracts.AuthorizationCertificate, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("artifacts: archive not configured")
	}
	data, err := a.store.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	var cert contracts.AuthorizationCertificate
	if err := json.Unmarshal(data, &cert); err != nil {
		return nil, fmt.Errorf("artifacts: decode certificate %s: %w", ref, err)
	}
	if err := certification.Verify(&cert); err != nil {
		return nil, fmt.Errorf("artifacts: certificate %s: %w", ref, err)
	}
	return &cert, nil
}

// PutEvidencePack archives a zipped evidence pack as-is.
func (a *Archive) PutEvidencePack(ctx context.Context, pack []byte) (string, error) {
	if a == nil || a.store == nil {
		return "", fmt.Errorf("artifacts: archive not configured")
	}
	if len(pack) == 0 {
		return "", fmt.Errorf("artifacts: empty evidence pack")
	}
	return a.store.Put(ctx, pack)
}

// Get returns raw archived bytes.
func (a *Archive) Get(ctx context.Context, ref string) ([]byte, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("artifacts: archive not configured")
	}
	return a.store.Get(ctx, ref)
}
