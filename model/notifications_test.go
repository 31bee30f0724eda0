package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityRank(t *testing.T) {
	assert := assert.New(t)
	assert.Less(SeverityCritical.Rank(), SeverityWarning.Rank())
	assert.Less(SeverityWarning.Rank(), SeverityInfo.Rank())
}

func TestTypeCategory(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(CategoryLowStock, TypeLowStock.Category())
	assert.Equal(CategoryUpcomingBills, TypeUpcomingBill.Category())
	assert.Equal(CategoryOverdueReceivables, TypeOverdueReceivable.Category())
	assert.Equal(CategoryBirthdays, TypeBirthday.Category())
	assert.Equal(CategoryPendingChecks, TypePendingCheck.Category())
}

func TestSnapshotWithout(t *testing.T) {
	assert := assert.New(t)

	original := &Snapshot{
		CycleID: "cycle",
		Notifications: []*Notification{
			{ID: "stock-1"},
			{ID: "bill-2"},
		},
		Counts: Counts{LowStock: 1, UpcomingBills: 1, Total: 2},
	}

	trimmed, ok := original.Without("stock-1")
	assert.True(ok)
	assert.Len(trimmed.Notifications, 1)
	assert.Equal("bill-2", trimmed.Notifications[0].ID)
	assert.Equal(original.Counts, trimmed.Counts, "counts must not change on dismiss")

	// The original snapshot must not have been modified.
	assert.Len(original.Notifications, 2)

	same, ok := original.Without("missing")
	assert.False(ok)
	assert.Same(original, same)
}
