package boardsync

import "encoding/json"

const (
	RecordStatusSuccess = "success"
	RecordStatusFailed  = "failed"
)

// RecordResult is the per-document outcome of one reconcile pass.
type RecordResult struct {
	DocumentKey string `json:"document_key"`
	Status      string `json:"status"`
	ItemId      string `json:"item_id,omitempty"`
	GroupId     string `json:"group_id,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Summary aggregates one reconcile pass. SyncedItems + FailedItems always
// equals len(Details).
type Summary struct {
	SyncedItems int            `json:"synced_items"`
	FailedItems int            `json:"failed_items"`
	Details     []RecordResult `json:"details"`
}

func decodeDetails(raw []byte) []RecordResult {
	if len(raw) == 0 {
		return nil
	}
	var details []RecordResult
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil
	}
	return details
}

type RunResponse struct {
	Status      string         `json:"status"`
	SyncedItems int            `json:"synced_items"`
	FailedItems int            `json:"failed_items"`
	Details     []RecordResult `json:"details"`
}

type TransferResponse struct {
	Status   string `json:"status"`
	Scanned  int    `json:"scanned"`
	Inserted int    `json:"inserted"`
}

type SyncRunResponse struct {
	ID                 uint    `json:"id"`
	Status             string  `json:"status"`
	StartedAt          *string `json:"startedAt"`
	FinishedAt         *string `json:"finishedAt"`
	DurationMs         int64   `json:"durationMs"`
	RecordsTransferred int     `json:"recordsTransferred"`
	RecordsSynced      int     `json:"recordsSynced"`
	ErrorCount         int     `json:"errorCount"`
	TriggeredBy        string  `json:"triggeredBy"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Details []RecordResult      `json:"details"`
	Errors  []SyncErrorResponse `json:"errors"`
}

type SyncErrorResponse struct {
	ID          uint   `json:"id"`
	DocumentKey string `json:"documentKey"`
	Message     string `json:"message"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type SyncRunPayload struct {
	RunId uint `json:"run_id"`
}
