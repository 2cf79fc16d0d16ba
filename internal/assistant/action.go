package assistant

import "time"

type Kind string

const (
	KindCreateTask   Kind = "create_task"
	KindCompleteTask Kind = "complete_task"
	KindUpdateTask   Kind = "update_task"
	KindArchiveTask  Kind = "archive_task"
)

func (k Kind) valid() bool {
	switch k {
	case KindCreateTask, KindCompleteTask, KindUpdateTask, KindArchiveTask:
		return true
	}
	return false
}

// Action is one command harvested from an assistant reply. The set of implementations is
// closed: CreateTask, CompleteTask, UpdateTask and ArchiveTask.
type Action interface {
	Kind() Kind
	isAction()
}

// CreateTask carries the raw due date; it is parsed when the action is validated.
type CreateTask struct {
	Title           string
	DueDate         string
	Description     string
	Category        string
	Tags            []string
	Priority        bool
	EstimateMinutes *int
}

type CompleteTask struct {
	TaskTitle string
}

type ArchiveTask struct {
	TaskTitle string
}

// UpdateTask leaves nil fields untouched.
type UpdateTask struct {
	TaskTitle       string
	DueDate         *string
	Priority        *bool
	Category        *string
	Description     *string
	EstimateMinutes *int
}

func (CreateTask) Kind() Kind   { return KindCreateTask }
func (CompleteTask) Kind() Kind { return KindCompleteTask }
func (UpdateTask) Kind() Kind   { return KindUpdateTask }
func (ArchiveTask) Kind() Kind  { return KindArchiveTask }

func (CreateTask) isAction()   {}
func (CompleteTask) isAction() {}
func (UpdateTask) isAction()   {}
func (ArchiveTask) isAction()  {}

var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDueDate accepts ISO-8601 dates and date-times. Values without an offset are read as UTC.
func ParseDueDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dueDateLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
