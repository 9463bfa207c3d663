package certification

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kalamgit143/validAIte-sub004/pkg/contracts"
)

// TokenIssuer is the iss claim of certificate tokens.
const TokenIssuer = "helm-authz"

// CertificateClaims is a compact, signed reference to an issued certificate
// for hand-off to deployment pipelines and regulators.
type CertificateClaims struct {
	jwt.RegisteredClaims
	CertificateHash string                       `json:"certificate_hash"`
	Decision        contracts.DeploymentDecision `json:"decision"`
	RequestID       string                       `json:"request_id"`
}

// SignToken signs an EdDSA JWT for cert. The token expires with the certificate.
func SignToken(cert *contracts.AuthorizationCertificate, key ed25519.PrivateKey, keyID string) (string, error) {
	if err := Verify(cert); err != nil {
		return "", err
	}
	if len(key) != ed25519.PrivateKeySize {
		return "", errors.New("certification: invalid signing key")
	}
	claims := CertificateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       cert.CertificateID,
			Issuer:   TokenIssuer,
			Subject:  cert.ApplicationName,
			IssuedAt: jwt.NewNumericDate(cert.IssuedAt),
		},
		CertificateHash: cert.CertificateHash,
		Decision:        cert.Decision,
		RequestID:       cert.RequestID,
	}
	if cert.ValidUntil != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*cert.ValidUntil)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if keyID != "" {
		tok.Header["kid"] = keyID
	}
	s, err := tok.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("certification: token signing failed: %w", err)
	}
	return s, nil
}

// ParseToken validates signature, issuer and expiry.
func ParseToken(token string, pub ed25519.PublicKey) (*CertificateClaims, error) {
	claims := &CertificateClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(TokenIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("certification: token validation failed: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("certification: invalid token")
	}
	return claims, nil
}

// VerifyToken checks that token was signed for exactly this certificate.
func VerifyToken(cert *contracts.AuthorizationCertificate, token string, pub ed25519.PublicKey) error {
	if err := Verify(cert); err != nil {
		return err
	}
	claims, err := ParseToken(token, pub)
	if err != nil {
		return err
	}
	if claims.ID != cert.CertificateID || claims.CertificateHash != cert.CertificateHash {
		return fmt.Errorf("%w: token does not reference certificate %s", ErrHashMismatch, cert.CertificateID)
	}
	return nil
}
