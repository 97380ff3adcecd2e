package dto

import "github.com/noah-isme/sku-media-api/internal/models"

// SubmissionResult is the response for one processing request. Items preserve
// submission order so callers can map input file i to record i.
type SubmissionResult struct {
	Sku   string                    `json:"sku"`
	Items []models.ProcessingRecord `json:"items"`
}

// RecordSnapshot lists all in-memory records across submissions.
type RecordSnapshot struct {
	Items []models.ProcessingRecord `json:"items"`
}
