package testhelpers

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/google/uuid"

	"github.com/campusbay/marketplace/pkg/auth"
)

const TestIssuer = "campus-market-auth"

// NewTestSigner returns a signer backed by a freshly generated RSA key pair.
func NewTestSigner(t *testing.T) *auth.Signer {
	t.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate rsa key: %s", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal public key: %s", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	signer, err := auth.NewSigner(privPEM, pubPEM, TestIssuer)
	if err != nil {
		t.Fatalf("failed to create signer: %s", err)
	}
	return signer
}

// BearerFor returns an Authorization header value for userID.
func BearerFor(t *testing.T, signer *auth.Signer, userID uuid.UUID) string {
	t.Helper()
	token, err := signer.GenerateToken(auth.Identity{
		UserID:      userID,
		Email:       userID.String()[:8] + "@rutgers.edu",
		DisplayName: "Test User",
	})
	if err != nil {
		t.Fatalf("failed to generate token: %s", err)
	}
	return "Bearer " + token.Token
}
