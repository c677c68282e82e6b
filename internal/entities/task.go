package entities

// TaskStatus tracks a scheduled task through the watchdog's lease/execute
// lifecycle (spec.md §4.9).
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
)

// Task is one unit of deferred HTTP work the watchdog executes on its
// behalf and writes the result of back into, grounded on
// original_source/api/src/logic/tasks.rs CreateRequest/Task and
// original_source/watchdog/src/client.rs's lease+execute+writeback loop.
type Task struct {
	Id             Id             `json:"id" bson:"_id"`
	Active         bool           `json:"active" bson:"active"`
	WorkerId       int            `json:"workerId" bson:"workerId"` // 0 = unleased, 1 = leased
	Status         TaskStatus     `json:"status" bson:"status"`
	Method         string         `json:"method" bson:"method"`
	Url            string         `json:"url" bson:"url"`
	Headers        map[string]string `json:"headers,omitempty" bson:"headers,omitempty"`
	Body           *string        `json:"body,omitempty" bson:"body,omitempty"`
	Await          bool           `json:"await,omitempty" bson:"await,omitempty"`
	ScheduledAt    int64          `json:"scheduledAt" bson:"scheduledAt"`
	StartedAt      *int64         `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	EndedAt        *int64         `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	LogTrail       []string       `json:"logTrail,omitempty" bson:"logTrail,omitempty"`
	Ownership      Ownership      `json:"ownership" bson:"ownership"`
	RecordMetadata RecordMetadata `json:"recordMetadata" bson:",inline"`
}

// Leasable reports whether t is eligible for the watchdog's atomic lease
// update: unleased, active, and due (ScheduledAt <= now handled by the
// caller's query, not here).
func (t Task) Leasable() bool {
	return t.Active && t.WorkerId == 0
}
