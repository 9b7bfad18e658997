package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"

	dErrors "medledger/pkg/domain-errors"
)

// Address is the deterministic lookup key for a record. Anyone holding the
// public inputs can recompute it without a directory lookup.
type Address string

// AddressLen is the encoded length of an Address (hex SHA-256).
const AddressLen = 64

// AddressSchemeV1 tags records with the derivation scheme that produced their
// address. It is pinned at creation and never mutated, so a future scheme can
// coexist with old records.
const AddressSchemeV1 uint8 = 1

// Namespace seeds keep batch and registry addresses in disjoint key spaces
// even for identical owner input.
const (
	nsBatch        = "batch"
	nsManufacturer = "manufacturer"
)

// DeriveBatchAddress computes the address of a batch record from its public
// inputs. The derivation is injective: every component is length-prefixed, so
// no two distinct (owner, batch id) pairs can collide short of a hash break.
func DeriveBatchAddress(owner ManufacturerID, batchID BatchID) Address {
	return derive(nsBatch, string(owner), string(batchID))
}

// DeriveRegistryAddress computes the address of a manufacturer registry entry.
func DeriveRegistryAddress(owner ManufacturerID) Address {
	return derive(nsManufacturer, string(owner))
}

// ParseAddress validates an externally supplied address.
func ParseAddress(raw string) (Address, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if len(raw) != AddressLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be 64 hex characters")
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "address must be hex encoded")
	}
	return Address(raw), nil
}

func (a Address) String() string { return string(a) }

func derive(parts ...string) Address {
	h := sha256.New()
	var lenBuf [4]byte
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		h.Write(lenBuf[:])
		h.Write([]byte(p))
	}
	return Address(hex.EncodeToString(h.Sum(nil)))
}
