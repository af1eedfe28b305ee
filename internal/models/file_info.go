package models

import "time"

// ParsingStatus is the lifecycle state of an uploaded file.
type ParsingStatus string

const (
	ParsingPending ParsingStatus = "pending"
	ParsingRunning ParsingStatus = "parsing"
	ParsingParsed  ParsingStatus = "parsed"
	ParsingFailed  ParsingStatus = "failed"
)

// FileInfo represents metadata about an uploaded export file.
type FileInfo struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ProjectID        string        `json:"projectId"`
	Folder           string        `json:"folder"`
	Kind             FileKind      `json:"kind"`
	Size             int64         `json:"size"`
	UploadedAt       time.Time     `json:"uploadedAt"`
	ParsingStatus    ParsingStatus `json:"parsingStatus"`
	ParseError       string        `json:"parseError,omitempty"`
	Versions         []string      `json:"versions"`
	CurrentVersionID string        `json:"currentVersionId,omitempty"`
}
