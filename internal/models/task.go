package models

// TaskType is the scheduling type of a task.
type TaskType string

const (
	TaskContinuous TaskType = "CONTINUOUS"
	TaskPeriodic   TaskType = "PERIODIC"
	TaskEvent      TaskType = "EVENT"
)

// Task schedules programs. At most one CONTINUOUS task exists per snapshot.
type Task struct {
	Name                 string   `json:"name" msgpack:"name"`
	Type                 TaskType `json:"type" msgpack:"type"`
	Rate                 *int     `json:"rate" msgpack:"rate"`
	Priority             int      `json:"priority" msgpack:"priority"`
	Watchdog             *int     `json:"watchdog" msgpack:"watchdog"`
	InhibitTask          bool     `json:"inhibitTask" msgpack:"inhibitTask"`
	DisableUpdateOutputs bool     `json:"disableUpdateOutputs" msgpack:"disableUpdateOutputs"`
	Description          *string  `json:"description,omitempty" msgpack:"description"`
	ScheduledPrograms    []string `json:"scheduledPrograms" msgpack:"scheduledPrograms"`
}
