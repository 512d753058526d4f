package domain

import (
	"strings"
	"time"
)

// JobState is the lifecycle state of a batch job.
type JobState string

// Job states. Completed, Failed and Revoked are terminal.
const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
	JobStateRevoked    JobState = "revoked"
)

// IsTerminal reports whether no further transition can occur.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateRevoked
}

func (s JobState) String() string {
	return string(s)
}

// JobStatus is the persisted progress record of a job.
type JobStatus struct {
	JobID           string     `json:"job_id"`
	State           JobState   `json:"state"`
	Progress        int        `json:"progress"`
	TotalFiles      int        `json:"total_files"`
	ProcessedFiles  int        `json:"processed_files"`
	SpreadsheetID   string     `json:"spreadsheet_id,omitempty"`
	ResultsCount    *int       `json:"results_count,omitempty"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
}

// RetentionAnchor is the instant the retention window is measured from.
func (s *JobStatus) RetentionAnchor() time.Time {
	if s.CompletedAt != nil {
		return *s.CompletedAt
	}
	return s.CreatedAt
}

// ComputeProgress returns floor(processed/total*100) capped at 99, so only a
// completed job ever reports 100.
func ComputeProgress(processed, total int) int {
	if total <= 0 || processed <= 0 {
		return 0
	}
	p := processed * 100 / total
	if p > 99 {
		return 99
	}
	return p
}

// BatchParseRequest asks for every resume in a Drive folder to be parsed.
// An empty SpreadsheetID means a new spreadsheet is created.
type BatchParseRequest struct {
	FolderID      string `json:"folder_id"`
	SpreadsheetID string `json:"spreadsheet_id,omitempty"`
}

// DriveFile is a file reference returned by a folder listing.
type DriveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

// Supported Drive MIME types.
const (
	MimeTypePDF  = "application/pdf"
	MimeTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// ExtractionResult is what the document parser produces for one file.
// Parsing never fails outright; problems are listed in Errors.
type ExtractionResult struct {
	Name       string   `json:"name,omitempty"`
	Email      string   `json:"email,omitempty"`
	Phone      string   `json:"phone,omitempty"`
	LinkedIn   string   `json:"linkedin,omitempty"`
	GitHub     string   `json:"github,omitempty"`
	Confidence float64  `json:"confidence"`
	OCRUsed    bool     `json:"ocr_used"`
	Errors     []string `json:"errors,omitempty"`
}

// ParsedCandidate is one extracted resume. It is immutable once produced.
type ParsedCandidate struct {
	DriveFileID string   `json:"drive_file_id,omitempty"`
	SourceFile  string   `json:"source_file"`
	Name        string   `json:"name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	LinkedIn    string   `json:"linkedin,omitempty"`
	GitHub      string   `json:"github,omitempty"`
	Confidence  float64  `json:"confidence"`
	OCRUsed     bool     `json:"ocr_used"`
	Errors      []string `json:"errors,omitempty"`
}

// NewParsedCandidate combines a file identity with its extraction result.
func NewParsedCandidate(fileID, sourceFile string, r ExtractionResult) ParsedCandidate {
	return ParsedCandidate{
		DriveFileID: fileID,
		SourceFile:  sourceFile,
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		LinkedIn:    r.LinkedIn,
		GitHub:      r.GitHub,
		Confidence:  r.Confidence,
		OCRUsed:     r.OCRUsed,
		Errors:      r.Errors,
	}
}

// FailedCandidate records a file that could not be processed.
func FailedCandidate(file DriveFile, message string) ParsedCandidate {
	return ParsedCandidate{
		DriveFileID: file.ID,
		SourceFile:  file.Name,
		Errors:      []string{message},
	}
}

// HasContactData reports whether any contact field was extracted.
func (c *ParsedCandidate) HasContactData() bool {
	for _, v := range []string{c.Name, c.Email, c.Phone, c.LinkedIn, c.GitHub} {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// ResultSheetName is the title of the results tab.
const ResultSheetName = "Resume Data"

// ResultSheetHeader is the header row of every results sheet and export.
var ResultSheetHeader = []string{"Name", "Resume Link", "Phone Number", "Email ID", "LinkedIn", "GitHub"}

// ResumeLink returns the Drive view URL for a file, or "" for local files.
func ResumeLink(fileID string) string {
	if fileID == "" {
		return ""
	}
	return "https://drive.google.com/file/d/" + fileID + "/view"
}

// SpreadsheetURL returns the browser URL of a spreadsheet.
func SpreadsheetURL(spreadsheetID string) string {
	return "https://docs.google.com/spreadsheets/d/" + spreadsheetID + "/edit"
}

// Row returns the candidate in ResultSheetHeader column order.
func (c *ParsedCandidate) Row() []string {
	return []string{c.Name, ResumeLink(c.DriveFileID), c.Phone, c.Email, c.LinkedIn, c.GitHub}
}

// CandidateRows returns sheet rows for candidates that carry contact data.
func CandidateRows(candidates []ParsedCandidate) [][]string {
	rows := make([][]string, 0, len(candidates))
	for i := range candidates {
		if candidates[i].HasContactData() {
			rows = append(rows, candidates[i].Row())
		}
	}
	return rows
}
