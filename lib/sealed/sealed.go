// Copyright 2026 The Vonwrap Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed handles encrypted wallet seed files. A profile's seed
// may live on disk as plaintext or as an age-encrypted file (x25519
// recipients, binary or ASCII-armored). Decryption keys and decrypted
// seeds are held in [secret.Buffer] values so they stay out of swap
// and core dumps and are zeroed when released.
package sealed

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/openvon/vonwrap/lib/secret"
)

// Keypair holds an age x25519 keypair. The private key is stored in a
// secret.Buffer; the public key is a plain string, safe to publish.
//
// The caller must call Close when the keypair is no longer needed.
type Keypair struct {
	PrivateKey *secret.Buffer
	PublicKey  string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair generates a new age x25519 keypair for sealing
// seeds. The caller must Close the returned Keypair.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generating age keypair: %w", err)
	}

	// Move the private key into mmap-backed memory immediately. The
	// intermediate string is on the heap and will be GC'd; the buffer
	// is the durable copy.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("protecting private key: %w", err)
	}

	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// LoadIdentity reads an age identity file and returns the first
// identity line in a secret.Buffer. Comment lines (#) and blank lines
// are skipped, matching age's own identity file format.
func LoadIdentity(path string) (*secret.Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open identity file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "AGE-SECRET-KEY-1") {
			return nil, fmt.Errorf("identity file %s: unrecognized line", path)
		}
		return secret.NewFromBytes([]byte(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}
	return nil, fmt.Errorf("identity file %s contains no identity", path)
}

// Encrypt encrypts plaintext to one or more age x25519 recipients and
// returns ASCII-armored ciphertext suitable for storing next to the
// profile configs.
func Encrypt(plaintext []byte, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var out bytes.Buffer
	armorWriter := armor.NewWriter(&out)
	writer, err := age.Encrypt(armorWriter, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return nil, fmt.Errorf("finalizing armor: %w", err)
	}
	return out.Bytes(), nil
}

// Decrypt decrypts age ciphertext (binary or ASCII-armored) with the
// given private key. The key is borrowed, not closed. The caller must
// Close the returned buffer.
func Decrypt(ciphertext []byte, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	var reader io.Reader = bytes.NewReader(ciphertext)
	if bytes.HasPrefix(bytes.TrimSpace(ciphertext), []byte(armor.Header)) {
		reader = armor.NewReader(reader)
	}

	decrypted, err := age.Decrypt(reader, identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(decrypted)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("decrypted seed is empty")
	}

	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		for index := range plaintext {
			plaintext[index] = 0
		}
		return nil, fmt.Errorf("protecting decrypted plaintext: %w", err)
	}
	return buffer, nil
}

// LoadSeed reads the seed at path. Files ending in .age are decrypted
// with the identity at identityPath; anything else is read as
// plaintext. Surrounding whitespace is trimmed either way. The caller
// must Close the returned buffer.
func LoadSeed(path, identityPath string) (*secret.Buffer, error) {
	if !strings.HasSuffix(path, ".age") {
		return secret.ReadFromPath(path)
	}

	if identityPath == "" {
		return nil, fmt.Errorf("seed %s is sealed but no identity file is configured", path)
	}
	privateKey, err := LoadIdentity(identityPath)
	if err != nil {
		return nil, err
	}
	defer privateKey.Close()

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sealed seed: %w", err)
	}
	seed, err := Decrypt(ciphertext, privateKey)
	if err != nil {
		return nil, fmt.Errorf("unseal %s: %w", path, err)
	}

	trimmed := bytes.TrimSpace(seed.Bytes())
	if len(trimmed) == 0 {
		seed.Close()
		return nil, fmt.Errorf("sealed seed %s is empty", path)
	}
	if len(trimmed) != seed.Len() {
		clean, err := secret.NewFromBytes(trimmed)
		seed.Close()
		if err != nil {
			return nil, err
		}
		return clean, nil
	}
	return seed, nil
}

// ParsePublicKey validates an age public key string.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("invalid age public key: %w", err)
	}
	return nil
}
