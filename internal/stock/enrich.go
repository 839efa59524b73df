package stock

import (
	"math"
	"time"
)

// Enrich derives the daily change percentage and stamps the record with the
// pipeline's processing time. A zero open price leaves the percentage nil
// instead of producing an infinity; the record itself is still forwarded.
func Enrich(rec DailyRecord, extractedAt time.Time) EnrichedRecord {
	e := EnrichedRecord{
		DailyRecord: rec,
		ExtractedAt: extractedAt,
	}
	if rec.Open != 0 {
		pct := math.Round((rec.Close-rec.Open)/rec.Open*100*100) / 100
		e.DailyChangePct = &pct
	}
	return e
}
