package taskstore

import "time"

type Status struct {
	ID    int64
	Title string
}

type Category struct {
	ID       int64
	OwnerID  int64
	Name     string
	ColorHex string
}

type Tag struct {
	ID       int64
	OwnerID  int64
	Name     string
	ColorHex string
}

type Task struct {
	ID              int64
	OwnerID         int64
	Title           string
	Description     string
	CategoryID      *int64
	StatusID        int64
	Done            bool
	Archived        bool
	Priority        bool
	EstimateMinutes *int
	DueDate         time.Time
	ClosedOn        time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewTask is the insert payload for InsertTask.
type NewTask struct {
	OwnerID         int64
	Title           string
	Description     string
	CategoryID      *int64
	StatusID        int64
	Priority        bool
	EstimateMinutes *int
	DueDate         time.Time
}

// TaskPatch applies only the non-nil fields. UpdatedAt is always bumped.
type TaskPatch struct {
	Title           *string
	Description     *string
	CategoryID      *int64
	Done            *bool
	Archived        *bool
	Priority        *bool
	EstimateMinutes *int
	DueDate         *time.Time
	ClosedOn        *time.Time
	UpdatedAt       time.Time
}

type TaskStats struct {
	Total     int64
	Completed int64
}

// CompletionRate is the rounded completed/total percentage.
func (s TaskStats) CompletionRate() int {
	if s.Total <= 0 {
		return 0
	}
	return int((s.Completed*100 + s.Total/2) / s.Total)
}

func unixOrZero(ts int64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func timeToUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().Unix()
}
