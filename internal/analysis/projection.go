package analysis

import "github.com/todaycapital/statementlens/pkg/models"

// ProjectSnapshots returns the months of merged that have no persisted
// snapshot row yet, in merged order. Rows are append-only, so a month that
// was persisted once is never emitted again even if its figures differ.
// Returns an empty slice (never nil) when there is nothing to append.
func ProjectSnapshots(persistedMonths []string, merged []models.MonthlySnapshot) []models.MonthlySnapshot {
	seen := make(map[string]struct{}, len(persistedMonths)+len(merged))
	for _, m := range persistedMonths {
		seen[m] = struct{}{}
	}

	out := []models.MonthlySnapshot{}
	for _, m := range merged {
		if _, ok := seen[m.Month]; ok {
			continue
		}
		seen[m.Month] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Months returns the month keys of snapshots in order.
func Months(snapshots []models.MonthlySnapshot) []string {
	out := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, s.Month)
	}
	return out
}
