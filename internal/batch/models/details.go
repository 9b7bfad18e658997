package models

import (
	"time"

	dErrors "medledger/pkg/domain-errors"
)

// DosageForm is the closed set of accepted medicine presentations.
type DosageForm string

const (
	DosageTablet    DosageForm = "Tablet"
	DosageCapsule   DosageForm = "Capsule"
	DosageSyrup     DosageForm = "Syrup"
	DosageInjection DosageForm = "Injection"
	DosageCream     DosageForm = "Cream"
	DosageOintment  DosageForm = "Ointment"
	DosageDrops     DosageForm = "Drops"
	DosageInhaler   DosageForm = "Inhaler"
	DosagePowder    DosageForm = "Powder"
	DosageGel       DosageForm = "Gel"
	DosageOther     DosageForm = "Other"
)

var dosageForms = map[DosageForm]bool{
	DosageTablet: true, DosageCapsule: true, DosageSyrup: true,
	DosageInjection: true, DosageCream: true, DosageOintment: true,
	DosageDrops: true, DosageInhaler: true, DosagePowder: true,
	DosageGel: true, DosageOther: true,
}

// PhysicalCondition describes the observed state of the goods at
// registration. Only PhysicalGood is registrable.
type PhysicalCondition string

const (
	PhysicalGood     PhysicalCondition = "Good"
	PhysicalDamaged  PhysicalCondition = "Damaged"
	PhysicalTampered PhysicalCondition = "Tampered"
)

// Field bounds for the business schema.
const (
	maxNameLen        = 100
	maxLicenseLen     = 50
	maxAddressLen     = 200
	maxStrengthLen    = 100
	maxCompositionLen = 500
	maxStorageLen     = 100
	maxInvoiceNoLen   = 50
	maxGSTLen         = 15
)

// Details is the business data carried by SchemaBusiness batches. All bounds
// are enforced at creation; none of these fields are ever mutated afterwards.
type Details struct {
	MedicineName        string            `json:"medicine_name"`
	GenericName         string            `json:"generic_name"`
	DosageForm          DosageForm        `json:"dosage_form"`
	Strength            string            `json:"strength"`
	Composition         string            `json:"composition"`
	ManufacturerName    string            `json:"manufacturer_name"`
	ManufacturerLicense string            `json:"manufacturer_license"`
	ManufacturerAddress string            `json:"manufacturer_address"`
	StorageCondition    string            `json:"storage_condition,omitempty"`
	PhysicalCondition   PhysicalCondition `json:"physical_condition"`
	InvoiceNumber       string            `json:"invoice_number"`
	InvoiceDate         int64             `json:"invoice_date"`
	GSTNumber           string            `json:"gst_number"`
}

// Validate applies the business field rules. Checks run in declaration order
// and the first failure wins; callers get exactly one reason per attempt.
func (d *Details) Validate(now time.Time) error {
	if err := requireBounded("medicine name", d.MedicineName, maxNameLen); err != nil {
		return err
	}
	if err := requireBounded("generic name", d.GenericName, maxNameLen); err != nil {
		return err
	}
	if !dosageForms[d.DosageForm] {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvalidDosageForm,
			"unknown dosage form: "+string(d.DosageForm))
	}
	if err := requireBounded("strength", d.Strength, maxStrengthLen); err != nil {
		return err
	}
	if err := requireBounded("composition", d.Composition, maxCompositionLen); err != nil {
		return err
	}
	if err := requireBounded("manufacturer name", d.ManufacturerName, maxNameLen); err != nil {
		return err
	}
	if err := requireBounded("manufacturer license", d.ManufacturerLicense, maxLicenseLen); err != nil {
		return err
	}
	if err := requireBounded("manufacturer address", d.ManufacturerAddress, maxAddressLen); err != nil {
		return err
	}
	if len(d.StorageCondition) > maxStorageLen {
		return tooLong("storage condition", maxStorageLen)
	}
	switch d.PhysicalCondition {
	case PhysicalGood:
	case PhysicalDamaged, PhysicalTampered:
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvalidPhysicalCondition,
			"batch cannot be registered in a compromised physical state")
	default:
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvalidPhysicalCondition,
			"unknown physical condition: "+string(d.PhysicalCondition))
	}
	if err := requireBounded("invoice number", d.InvoiceNumber, maxInvoiceNoLen); err != nil {
		return err
	}
	if d.InvoiceDate > now.Unix() {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonInvoiceDateInFuture,
			"invoice date cannot be in the future")
	}
	if err := requireBounded("gst number", d.GSTNumber, maxGSTLen); err != nil {
		return err
	}
	return nil
}

func requireBounded(field, value string, maxLen int) error {
	if value == "" {
		return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonFieldEmpty,
			field+" cannot be empty")
	}
	if len(value) > maxLen {
		return tooLong(field, maxLen)
	}
	return nil
}

func tooLong(field string, maxLen int) error {
	return dErrors.NewWithReason(dErrors.CodeValidation, dErrors.ReasonFieldTooLong,
		field+" exceeds maximum length")
}
