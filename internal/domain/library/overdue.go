// Package library describes records owned by the external library service.
package library

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// OverdueItem is a loan reported as overdue by the library service.
type OverdueItem struct {
	// StudentID is the borrower id as the library reports it (a string).
	StudentID string
	Title     string
	DueDate   string
}

// BelongsTo compares the borrower with a local student id as strings.
func (o OverdueItem) BelongsTo(studentID int64) bool {
	return o.StudentID == strconv.FormatInt(studentID, 10)
}

// FineDescription is the invoice description of a late-return fine.
func (o OverdueItem) FineDescription() string {
	return "Late return: " + o.Title
}

// FineKey identifies the fine for this loan: sha256 of studentId|title|dueDate,
// hex encoded. An item that stays overdue keeps the same key across sweeps.
func (o OverdueItem) FineKey() string {
	sum := sha256.Sum256([]byte(o.StudentID + "|" + o.Title + "|" + o.DueDate))
	return hex.EncodeToString(sum[:])
}
