// Package sshca signs short-lived SSH user certificates so provisioning
// connections do not depend on long-lived per-server keys.
package sshca

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

// clockSkew backdates certificates to tolerate host clock drift.
const clockSkew = 30 * time.Second

type CA struct {
	signer ssh.Signer
}

// New parses a PEM-encoded CA private key.
func New(pemBytes []byte) (*CA, error) {
	signer, err := ssh.ParsePrivateKey(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("sshca: parse private key: %w", err)
	}
	return &CA{signer: signer}, nil
}

// LoadFile reads the CA key from path. An empty path returns nil, nil.
func LoadFile(path string) (*CA, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sshca: read %s: %w", path, err)
	}
	return New(b)
}

// PublicKey returns the CA public key.
func (ca *CA) PublicKey() ssh.PublicKey {
	return ca.signer.PublicKey()
}

// AuthorizedKeysLine is the line a host adds to authorized_keys to trust
// certificates from this CA.
func (ca *CA) AuthorizedKeysLine() string {
	return "cert-authority " + strings.TrimSpace(string(ssh.MarshalAuthorizedKey(ca.signer.PublicKey())))
}

// Sign creates an ephemeral Ed25519 key and a user certificate for principal
// valid for ttl. The returned signer presents the certificate.
func (ca *CA) Sign(principal string, ttl time.Duration) (ssh.Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sshca: generate ephemeral key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("sshca: convert public key: %w", err)
	}

	now := time.Now()
	cert := &ssh.Certificate{
		CertType:        ssh.UserCert,
		Key:             sshPub,
		KeyId:           "paas-provisioner:" + principal,
		ValidPrincipals: []string{principal},
		ValidAfter:      uint64(now.Add(-clockSkew).Unix()),
		ValidBefore:     uint64(now.Add(ttl).Unix()),
	}
	if err := cert.SignCert(rand.Reader, ca.signer); err != nil {
		return nil, fmt.Errorf("sshca: sign certificate: %w", err)
	}

	ephemeral, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("sshca: create ephemeral signer: %w", err)
	}
	signer, err := ssh.NewCertSigner(cert, ephemeral)
	if err != nil {
		return nil, fmt.Errorf("sshca: create cert signer: %w", err)
	}
	return signer, nil
}
