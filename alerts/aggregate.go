package alerts

import (
	"sort"

	"github.com/pdv-retail/business-alerts/model"
)

// Aggregate merges the classifications in the order given and orders the result by severity,
// keeping the merge order among notifications of equal severity. Counts are taken from each
// classification's matched records.
func Aggregate(classifications ...Classification) ([]*model.Notification, model.Counts) {
	var counts model.Counts
	merged := make([]*model.Notification, 0)

	for _, c := range classifications {
		merged = append(merged, c.Notifications...)

		matched := len(c.Notifications)
		switch c.Category {
		case model.CategoryLowStock:
			counts.LowStock += matched
		case model.CategoryUpcomingBills:
			counts.UpcomingBills += matched
		case model.CategoryOverdueReceivables:
			counts.OverdueReceivables += matched
		case model.CategoryBirthdays:
			counts.Birthdays += matched
		case model.CategoryPendingChecks:
			counts.PendingChecks += matched
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Severity.Rank() < merged[j].Severity.Rank()
	})
	counts.Total = len(merged)

	return merged, counts
}
