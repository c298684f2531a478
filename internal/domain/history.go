package domain

import "time"

type HistoryAction string

const (
	ActionGenerated HistoryAction = "generated"
	ActionScanned   HistoryAction = "scanned"
)

func ParseHistoryAction(s string) (HistoryAction, bool) {
	switch HistoryAction(s) {
	case ActionGenerated, ActionScanned:
		return HistoryAction(s), true
	default:
		return "", false
	}
}

// HistoryEntry is one audit record in the local ledger. Rejected scans are
// recorded too; Payload is nil when the scanned string never decoded.
type HistoryEntry struct {
	ID         string        `json:"id"`
	Action     HistoryAction `json:"action"`
	Payload    *QRPayload    `json:"payload,omitempty"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// HistoryStats is derived from the ledger contents.
type HistoryStats struct {
	TotalGenerated int `json:"total_generated"`
	TotalScanned   int `json:"total_scanned"`
	// SuccessRate is scanned over generated; 0 when nothing was generated.
	SuccessRate    float64        `json:"success_rate"`
	RecentActivity []HistoryEntry `json:"recent_activity"`
}
