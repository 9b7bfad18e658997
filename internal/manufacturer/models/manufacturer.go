package models

import (
	"strings"
	"time"

	"medledger/pkg/domain"
	dErrors "medledger/pkg/domain-errors"
)

// Entry is a manufacturer's registry record. Verified is set at creation
// and never flips back; an unverified entry can only come from an operator
// seeding the store directly, and such entries cannot register batches.
type Entry struct {
	Manufacturer  domain.ManufacturerID `json:"manufacturer"`
	Name          string                `json:"name"`
	Address       domain.Address        `json:"address"`
	Verified      bool                  `json:"verified"`
	SecretHash    string                `json:"-"`
	RegisteredAt  int64                 `json:"registered_at"`
	AddressScheme uint8                 `json:"address_scheme"`
}

const maxNameLen = 100

// RegisterRequest asks for a new manufacturer identity.
type RegisterRequest struct {
	Manufacturer domain.ManufacturerID `json:"manufacturer"`
	Name         string                `json:"name"`
}

func (r *RegisterRequest) Normalize() {
	r.Manufacturer = domain.ManufacturerID(strings.TrimSpace(string(r.Manufacturer)))
	r.Name = strings.TrimSpace(r.Name)
}

func (r *RegisterRequest) Validate() error {
	if _, err := domain.ParseManufacturerID(string(r.Manufacturer)); err != nil {
		return err
	}
	if r.Name == "" {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonFieldEmpty,
			"manufacturer name cannot be empty")
	}
	if len(r.Name) > maxNameLen {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonFieldTooLong,
			"manufacturer name exceeds maximum length")
	}
	return nil
}

// NewEntry mints a verified registry entry. The secret hash is computed by
// the service; the raw secret never reaches the model.
func NewEntry(req *RegisterRequest, secretHash string, now time.Time) *Entry {
	return &Entry{
		Manufacturer:  req.Manufacturer,
		Name:          req.Name,
		Address:       domain.DeriveRegistryAddress(req.Manufacturer),
		Verified:      true,
		SecretHash:    secretHash,
		RegisteredAt:  now.Unix(),
		AddressScheme: domain.AddressSchemeV1,
	}
}

// TokenRequest exchanges a manufacturer id and API secret for an access token.
type TokenRequest struct {
	Manufacturer domain.ManufacturerID `json:"manufacturer"`
	Secret       string                `json:"secret"`
}

func (r *TokenRequest) Validate() error {
	if _, err := domain.ParseManufacturerID(string(r.Manufacturer)); err != nil {
		return err
	}
	if r.Secret == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "secret is required")
	}
	return nil
}
