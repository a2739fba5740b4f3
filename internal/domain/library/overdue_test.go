package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOverdueItem_BelongsTo(t *testing.T) {
	item := OverdueItem{StudentID: "12", Title: "Dune"}

	assert.True(t, item.BelongsTo(12))
	assert.False(t, item.BelongsTo(1))
	assert.False(t, OverdueItem{StudentID: "012"}.BelongsTo(12))
}

func TestOverdueItem_Fine(t *testing.T) {
	a := OverdueItem{StudentID: "3", Title: "SICP", DueDate: "2026-09-01"}
	b := a
	b.DueDate = "2026-09-02"

	assert.Equal(t, "Late return: SICP", a.FineDescription())
	assert.Len(t, a.FineKey(), 64)
	assert.Equal(t, a.FineKey(), OverdueItem{StudentID: "3", Title: "SICP", DueDate: "2026-09-01"}.FineKey())
	assert.NotEqual(t, a.FineKey(), b.FineKey())
}
