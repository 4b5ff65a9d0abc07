// Copyright 2026 The axus Authors
// This file is part of the axus library.
//
// The axus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The axus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the axus library. If not, see <http://www.gnu.org/licenses/>.

package common

import (
	"crypto/ed25519"
	"encoding/base64"

	"golang.org/x/crypto/sha3"

	"github.com/omnius-labs/axus/axerr"
	"github.com/omnius-labs/axus/rocketpack"
)

// SignType tags a certificate with its signature scheme.
type SignType uint8

const (
	SignTypeUnknown SignType = 0
	SignTypeEd25519 SignType = 1
)

const (
	maxCertNameLen      = 256
	maxCertPublicKeyLen = 64
	maxCertValueLen     = 128
)

// OmniCert is a peer's public-key certificate over some signed message,
// produced by a Signer and verified against the challenge nonce it covers.
type OmniCert struct {
	SignType  SignType
	Name      string
	PublicKey []byte
	Value     []byte
}

// Verify checks the certificate's signature over msg.
func (c *OmniCert) Verify(msg []byte) error {
	switch c.SignType {
	case SignTypeEd25519:
		if len(c.PublicKey) != ed25519.PublicKeySize {
			return axerr.New(axerr.CryptoError).WithMessage("invalid public key length")
		}
		if len(c.Value) != ed25519.SignatureSize {
			return axerr.New(axerr.CryptoError).WithMessage("invalid signature length")
		}
		if !ed25519.Verify(ed25519.PublicKey(c.PublicKey), msg, c.Value) {
			return axerr.New(axerr.CryptoError).WithMessage("signature verification failed")
		}
		return nil
	default:
		return axerr.New(axerr.UnsupportedType).WithMessage("unsupported sign type")
	}
}

// Fingerprint renders "name@base64url(sha3-256(publicKey))".
func (c *OmniCert) Fingerprint() string {
	sum := sha3.Sum256(c.PublicKey)
	return c.Name + "@" + base64.RawURLEncoding.EncodeToString(sum[:])
}

func (c *OmniCert) Pack(w *rocketpack.Writer, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	w.PutU8(uint8(c.SignType))
	w.PutString(c.Name)
	w.PutBytes(c.PublicKey)
	w.PutBytes(c.Value)
	return nil
}

func (c *OmniCert) Unpack(r *rocketpack.Reader, depth uint32) error {
	if err := rocketpack.CheckDepth(depth); err != nil {
		return err
	}
	signType, err := r.GetU8()
	if err != nil {
		return err
	}
	name, err := r.GetString(maxCertNameLen)
	if err != nil {
		return err
	}
	publicKey, err := r.GetBytes(maxCertPublicKeyLen)
	if err != nil {
		return err
	}
	value, err := r.GetBytes(maxCertValueLen)
	if err != nil {
		return err
	}
	c.SignType = SignType(signType)
	c.Name = name
	c.PublicKey = publicKey
	c.Value = value
	return nil
}

// Signer produces certificates binding this node's identity to a message.
// The session layer consumes it as an abstract capability.
type Signer interface {
	Sign(msg []byte) (*OmniCert, error)
}

type ed25519Signer struct {
	name string
	priv ed25519.PrivateKey
}

// NewEd25519Signer generates a fresh keypair under the given display name.
func NewEd25519Signer(name string) (Signer, error) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, axerr.New(axerr.CryptoError).WithMessage("keygen failed").WithSource(err)
	}
	return &ed25519Signer{name: name, priv: priv}, nil
}

func (s *ed25519Signer) Sign(msg []byte) (*OmniCert, error) {
	pub := s.priv.Public().(ed25519.PublicKey)
	return &OmniCert{
		SignType:  SignTypeEd25519,
		Name:      s.name,
		PublicKey: append([]byte(nil), pub...),
		Value:     ed25519.Sign(s.priv, msg),
	}, nil
}
