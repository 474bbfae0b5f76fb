package globus

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Wire DATA_TYPE values.
const (
	dataTypeTransfer     = "transfer"
	dataTypeTransferItem = "transfer_item"
)

// Task status values reported by the service.
const (
	TaskActive    = "ACTIVE"
	TaskInactive  = "INACTIVE"
	TaskSucceeded = "SUCCEEDED"
	TaskFailed    = "FAILED"
)

// Sync levels: a file is skipped when the destination already matches at
// the given level.
const (
	SyncExists   = 0
	SyncSize     = 1
	SyncMtime    = 2
	SyncChecksum = 3
)

var syncLevelNames = map[string]int{
	"exists":   SyncExists,
	"size":     SyncSize,
	"mtime":    SyncMtime,
	"checksum": SyncChecksum,
}

// ParseSyncLevel maps a sync level name to its numeric value. An empty name
// returns nil: no sync level, always transfer.
func ParseSyncLevel(name string) (*int, error) {
	if name == "" {
		return nil, nil //nolint:nilnil // nil means "unset"
	}

	level, ok := syncLevelNames[name]
	if !ok {
		return nil, fmt.Errorf("globus: unknown sync level %q", name)
	}

	return &level, nil
}

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified"`
	Permissions  string `json:"permissions"`
	User         string `json:"user"`
	Group        string `json:"group"`
	LinkTarget   string `json:"link_target,omitempty"`
}

// IsDir reports whether the entry is a directory.
func (e DirEntry) IsDir() bool {
	return e.Type == "dir"
}

// DirListing is the response to a directory listing.
type DirListing struct {
	Path     string     `json:"path"`
	Endpoint string     `json:"endpoint"`
	Length   int        `json:"length"`
	Total    int        `json:"total"`
	Entries  []DirEntry `json:"DATA"`
}

// TransferItem is one source/destination pair in a transfer document.
type TransferItem struct {
	DataType        string `json:"DATA_TYPE"`
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
	Recursive       bool   `json:"recursive"`
}

// TransferData is a transfer submission document.
type TransferData struct {
	DataType            string         `json:"DATA_TYPE"`
	SubmissionID        string         `json:"submission_id"`
	SourceEndpoint      string         `json:"source_endpoint"`
	DestinationEndpoint string         `json:"destination_endpoint"`
	Label               string         `json:"label,omitempty"`
	SyncLevel           *int           `json:"sync_level,omitempty"`
	VerifyChecksum      bool           `json:"verify_checksum"`
	Deadline            string         `json:"deadline,omitempty"`
	Items               []TransferItem `json:"DATA"`
}

// NewTransferData starts a transfer document between two collections.
func NewTransferData(source, destination, label string) *TransferData {
	return &TransferData{
		DataType:            dataTypeTransfer,
		SourceEndpoint:      source,
		DestinationEndpoint: destination,
		Label:               label,
		Items:               []TransferItem{},
	}
}

// AddItem appends a source/destination pair. Paths are normalized to NFC so
// that the same name typed on different platforms addresses the same file.
func (t *TransferData) AddItem(source, destination string, recursive bool) {
	t.Items = append(t.Items, TransferItem{
		DataType:        dataTypeTransferItem,
		SourcePath:      norm.NFC.String(source),
		DestinationPath: norm.NFC.String(destination),
		Recursive:       recursive,
	})
}

// TransferResult is the response to a successful submission.
type TransferResult struct {
	TaskID       string `json:"task_id"`
	SubmissionID string `json:"submission_id"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	RequestID    string `json:"request_id"`
}

// Task is the status document of a submitted task.
type Task struct {
	TaskID                string `json:"task_id"`
	Type                  string `json:"type"`
	Status                string `json:"status"`
	NiceStatus            string `json:"nice_status"`
	Label                 string `json:"label"`
	SourceEndpointID      string `json:"source_endpoint_id"`
	DestinationEndpointID string `json:"destination_endpoint_id"`
	RequestTime           string `json:"request_time"`
	CompletionTime        string `json:"completion_time"`
	Files                 int    `json:"files"`
	FilesTransferred      int    `json:"files_transferred"`
	FilesSkipped          int    `json:"files_skipped"`
	BytesTransferred      int64  `json:"bytes_transferred"`
	Faults                int    `json:"faults"`
}

// Done reports whether the task reached a terminal status.
func (t *Task) Done() bool {
	return t.Status == TaskSucceeded || t.Status == TaskFailed
}

// Endpoint is the subset of collection metadata used for display.
type Endpoint struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	OwnerString string `json:"owner_string"`
	EntityType  string `json:"entity_type"`
}
