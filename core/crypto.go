// SPDX-License-Identifier: BUSL-1.1
package core

// Crypto Capability: a leaf, stateless collaborator providing keypair
// generation, signing, verification, hashing, and address derivation.
// One Edwards-curve signature scheme and one cryptographic hash with
// 32-byte output is required; ed25519 + SHA-256 satisfy both with a
// single dependency.

import (
	"crypto/ed25519"
	crand "crypto/rand"
	"crypto/sha256"
	"fmt"

	bip39 "github.com/tyler-smith/go-bip39"
)

// KeyPair bundles an ed25519 key pair. PrivateKey is the 64-byte
// seed+public form produced by crypto/ed25519; callers that persist it
// are responsible for protecting it at rest.
type KeyPair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
}

// GenerateKeypair creates a fresh random ed25519 key pair.
func GenerateKeypair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(crand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate keypair: %w", err)
	}
	return KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

// NewMnemonicKeypair generates entropyBits (128 or 256) of randomness,
// returns a recovery mnemonic alongside the derived key pair. Operators
// use the mnemonic as a human-recoverable backup of PrivateKey.
func NewMnemonicKeypair(entropyBits int) (KeyPair, string, error) {
	if entropyBits != 128 && entropyBits != 256 {
		return KeyPair{}, "", fmt.Errorf("unsupported entropy size %d", entropyBits)
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return KeyPair{}, "", fmt.Errorf("entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return KeyPair{}, "", fmt.Errorf("mnemonic: %w", err)
	}
	seed := bip39.NewSeed(mnemonic, "")
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)
	return KeyPair{PrivateKey: priv, PublicKey: pub}, mnemonic, nil
}

// KeypairFromMnemonic recovers the key pair derived by NewMnemonicKeypair.
func KeypairFromMnemonic(mnemonic, passphrase string) (KeyPair, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return KeyPair{}, NewError(KindBadInput, "invalid mnemonic checksum")
	}
	seed := bip39.NewSeed(mnemonic, passphrase)
	priv := ed25519.NewKeyFromSeed(seed[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)
	return KeyPair{PrivateKey: priv, PublicKey: pub}, nil
}

// Sign signs msg with priv, returning a 64-byte ed25519 signature.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify reports whether sig is a valid ed25519 signature of msg by pub.
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}

// Sum256 hashes data with SHA-256, the chain's one 32-byte digest.
func Sum256(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// DeriveAddress derives an Address from an ed25519 public key: the
// leading 20 bytes of SHA-256(pub). No RIPEMD-160 pass is applied —
// a single hash is all that's required here.
func DeriveAddress(pub ed25519.PublicKey) Address {
	sum := sha256.Sum256(pub)
	var out Address
	copy(out[:], sum[:20])
	return out
}
