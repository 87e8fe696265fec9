// Package domain defines the types and interfaces for the verify service
package domain

import (
	"time"

	"openshelf/internal/core/license"
)

// Verification is the persisted record of a work's most recent license
// check. Earlier outcomes stay in History, newest last
type Verification struct {
	Source     string         `json:"source"`
	ItemID     string         `json:"item_id"`
	Result     license.Result `json:"verification_result"`
	VerifiedBy string         `json:"verified_by,omitempty"`
	VerifiedAt time.Time      `json:"verified_at"`
	History    []HistoryEntry `json:"history"`
}

// HistoryEntry is one superseded verification outcome
type HistoryEntry struct {
	Result     license.Result `json:"verification_result"`
	VerifiedBy string         `json:"verified_by,omitempty"`
	VerifiedAt time.Time      `json:"verified_at"`
}

// Key returns the store key for a source and item pair
func Key(source, itemID string) string { return source + ":" + itemID }

// ClassifyInput carries everything a source directed classification needs.
// Text is the normalized full text, only consulted for branding scans
type ClassifyInput struct {
	Source      string
	LicenseHint string
	LicenseURL  string
	Date        string
	Description string
	Collections []string
	Text        string
}
