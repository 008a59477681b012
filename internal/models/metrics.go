package models

import "time"

// SystemMetrics is a JSON snapshot of the admission counters kept by the metrics service.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	Admissions               uint64    `json:"admissions"`
	Waitlisted               uint64    `json:"waitlisted"`
	Rejections               uint64    `json:"rejections"`
	Promotions               uint64    `json:"promotions"`
	OffersExpired            uint64    `json:"offers_expired"`
	NotificationFailures     uint64    `json:"notification_failures"`
	AverageLedgerTxMs        float64   `json:"average_ledger_tx_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
