// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the assessed compliance state of a control.
type Status string

const (
	StatusCompliant     Status = "compliant"
	StatusPartial       Status = "partial"
	StatusNonCompliant  Status = "non_compliant"
	StatusNotApplicable Status = "not_applicable"
	StatusNotAssessed   Status = "not_assessed"
)

// ErrInvalidStatus is returned for a status outside the configured set.
var ErrInvalidStatus = errors.New("invalid status")

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// DisplayName returns a human-readable label for the status.
func (s Status) DisplayName() string {
	switch s {
	case StatusCompliant:
		return "Compliant"
	case StatusPartial:
		return "Partially compliant"
	case StatusNonCompliant:
		return "Non-compliant"
	case StatusNotApplicable:
		return "Not applicable"
	case StatusNotAssessed:
		return "Not assessed"
	default:
		return string(s)
	}
}

// StatusSet is the fixed enumeration a deployment accepts. Some assessment
// screens offer "not assessed" as an explicit choice, others do not.
type StatusSet struct {
	allowNotAssessed bool
}

// NewStatusSet builds a status set.
func NewStatusSet(allowNotAssessed bool) StatusSet {
	return StatusSet{allowNotAssessed: allowNotAssessed}
}

// Values returns the accepted statuses in display order.
func (s StatusSet) Values() []Status {
	values := []Status{StatusCompliant, StatusPartial, StatusNonCompliant, StatusNotApplicable}
	if s.allowNotAssessed {
		values = append(values, StatusNotAssessed)
	}
	return values
}

// Contains reports whether status is accepted.
func (s StatusSet) Contains(status Status) bool {
	for _, v := range s.Values() {
		if v == status {
			return true
		}
	}
	return false
}

// Parse validates a raw status value.
func (s StatusSet) Parse(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Contains(status) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return status, nil
}

// =============================================================================
// ASSESSMENT ITEM
// =============================================================================

// AssessmentItem is one control row of an assessment. A single instance is
// shared by every view that renders it.
type AssessmentItem struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updated_at"`

	// Saving is display-only; it is set while a status change is unconfirmed.
	Saving bool `json:"-"`
}

// Clone returns a copy of the item.
func (i *AssessmentItem) Clone() AssessmentItem {
	return *i
}

// ItemPatch is the body of an item mutation request. Nil fields are omitted.
type ItemPatch struct {
	Status *Status `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// Fields lists the fields the patch carries.
func (p ItemPatch) Fields() []Field {
	var fields []Field
	if p.Status != nil {
		fields = append(fields, FieldStatus)
	}
	if p.Notes != nil {
		fields = append(fields, FieldNotes)
	}
	return fields
}

// ItemState is the canonical item state returned by the mutation endpoint.
type ItemState struct {
	Status    Status    `json:"status"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updated_at"`
}

// =============================================================================
// PENDING MUTATION
// =============================================================================

// Field names a mutable item field.
type Field string

const (
	FieldStatus Field = "status"
	FieldNotes  Field = "notes"
)

// PendingMutation tracks an unconfirmed change chain for one item field.
// Snapshot is the authoritative value captured before the chain's first
// request was issued; Value is the latest local value.
type PendingMutation struct {
	Field    Field
	Value    string
	Snapshot string
}
