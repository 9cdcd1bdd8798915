package model

import "time"

const (
	JobCheckPending        = "check-pending-payments"
	JobExpireSubscriptions = "expire-subscriptions"
)

// Detail statuses reported per item of a sweep.
const (
	DetailActivated = "activated"
	DetailCancelled = "cancelled"
	DetailPending   = "pending"
	DetailExpired   = "expired"
	DetailError     = "error"
	DetailTimeout   = "timeout"
)

type JobDetail struct {
	SubscriptionID string   `json:"subscriptionId,omitempty"`
	UserID         string   `json:"userId,omitempty"`
	PaymentID      string   `json:"paymentId,omitempty"`
	Status         string   `json:"status"`
	Message        string   `json:"message,omitempty"`
	Provisioning   []string `json:"provisioningErrors,omitempty"`
}

// JobResult is the summary a sweep returns to its trigger and records in
// system_logs.
type JobResult struct {
	Job            string      `json:"job"`
	Checked        int         `json:"checked"`
	Processed      int         `json:"processed"`
	Errors         int         `json:"errors"`
	Details        []JobDetail `json:"details"`
	AlreadyRunning bool        `json:"alreadyRunning,omitempty"`
	TimedOut       bool        `json:"timedOut,omitempty"`
	StartedAt      time.Time   `json:"startedAt"`
	DurationMs     int64       `json:"durationMs"`
}

func NewJobResult(job string, now time.Time) *JobResult {
	return &JobResult{Job: job, StartedAt: now, Details: []JobDetail{}}
}

func (r *JobResult) Add(d JobDetail) {
	r.Details = append(r.Details, d)
	if d.Status == DetailError {
		r.Errors++
	}
}

// Outcome is the coarse status recorded in the audit log and metrics.
func (r *JobResult) Outcome() string {
	switch {
	case r.AlreadyRunning:
		return "already_running"
	case r.TimedOut:
		return "timeout"
	case r.Errors > 0:
		return "partial"
	}
	return "ok"
}

// SystemLog is an audit row written for every sweep execution.
type SystemLog struct {
	ID        string
	Job       string
	Status    string
	Summary   *JobResult
	CreatedAt time.Time
}
