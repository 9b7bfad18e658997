package handler

import (
	"medledger/internal/batch/models"
	"medledger/pkg/platform/audit"
)

type registerResponse struct {
	Batch      *models.Batch `json:"batch"`
	NearExpiry bool          `json:"near_expiry"`
}

type expiryCheckResponse struct {
	Batch      *models.Batch `json:"batch"`
	ExpiredNow bool          `json:"expired_now"`
}

type auditTrailResponse struct {
	Events []audit.Event `json:"events"`
}

type listResponse struct {
	Batches []*models.Batch `json:"batches"`
}
