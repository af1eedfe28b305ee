package models

// UsageType classifies how a rung touches a tag.
type UsageType string

const (
	UsageRead      UsageType = "Read"
	UsageWrite     UsageType = "Write"
	UsageReadWrite UsageType = "Read/Write"
)

// TagReference is one static occurrence of an operand in a rung.
// References are derived; several may point at the same tag.
type TagReference struct {
	TagName      string    `json:"tagName" msgpack:"tagName"`
	FileID       string    `json:"fileId" msgpack:"fileId"`
	VersionID    string    `json:"versionId" msgpack:"versionId"`
	ProgramName  string    `json:"programName" msgpack:"programName"`
	RoutineName  string    `json:"routineName" msgpack:"routineName"`
	RungNumber   int       `json:"rungNumber" msgpack:"rungNumber"`
	Instruction  string    `json:"instruction" msgpack:"instruction"`
	OperandIndex int       `json:"operandIndex" msgpack:"operandIndex"`
	UsageType    UsageType `json:"usageType" msgpack:"usageType"`
}
