package queue

type TaskType string

const (
	TaskTypeChannelAudit TaskType = "channel_audit"
)

// AuditTask asks a worker to audit one registered target.
type AuditTask struct {
	TargetID      int64
	ReferenceDate string // Optional: same formats as TARGET_DATE
	TraceID       *string
	Attempt       int
}
