package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func ReportKey(reportID uuid.UUID) string {
	return fmt.Sprintf("report:%s", reportID)
}

func ReportLockKey(reportID uuid.UUID) string {
	return fmt.Sprintf("lock:report:%s", reportID)
}

func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
