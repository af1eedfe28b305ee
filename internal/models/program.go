package models

// RoutineType is the language a routine is written in.
type RoutineType string

const (
	RoutineLadder     RoutineType = "RLL"
	RoutineStructured RoutineType = "ST"
	RoutineFunction   RoutineType = "FBD"
	RoutineSequence   RoutineType = "SFC"
)

// Program groups tags and routines and is scheduled by a task.
type Program struct {
	Name        string  `json:"name" msgpack:"name"`
	MainRoutine *string `json:"mainRoutine" msgpack:"mainRoutine"`
	Disabled    bool    `json:"disabled" msgpack:"disabled"`
	Description *string `json:"description" msgpack:"description"`
}

// Routine belongs to exactly one program.
type Routine struct {
	Name        string      `json:"name" msgpack:"name"`
	ProgramName string      `json:"programName" msgpack:"programName"`
	Type        RoutineType `json:"type" msgpack:"type"`
	Description *string     `json:"description" msgpack:"description"`
	RungCount   int         `json:"rungCount" msgpack:"rungCount"`
}

// Rung is one row of ladder logic. Number is 0-based and unique per routine.
type Rung struct {
	ProgramName string  `json:"programName" msgpack:"programName"`
	RoutineName string  `json:"routineName" msgpack:"routineName"`
	Number      int     `json:"number" msgpack:"number"`
	Type        string  `json:"type,omitempty" msgpack:"type"`
	Comment     *string `json:"comment" msgpack:"comment"`
	LogicText   string  `json:"logicText" msgpack:"logicText"`
}

// HasComment reports whether the rung carries a non-blank comment.
func (r Rung) HasComment() bool {
	if r.Comment == nil {
		return false
	}
	for _, c := range *r.Comment {
		switch c {
		case ' ', '\t', '\n', '\r', '\v', '\f':
			continue
		}
		return true
	}
	return false
}
