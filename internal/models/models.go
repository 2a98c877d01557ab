package models

import "io"

// FileRecord is the metadata of an uploaded file.
type FileRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Hash      string `json:"hash"`
	Location  string `json:"location"`
	Size      int64  `json:"size"`
	MimeType  string `json:"mimeType,omitempty"`
	CreatedAt int64  `json:"createdAt"` // Unix timestamp (seconds)
}

// Finalized reports whether the blob for this record has been written.
func (f FileRecord) Finalized() bool {
	return f.Location != ""
}

// Download is a blob stream ready to be sent to a client.
// The caller must close Body.
type Download struct {
	Body        io.ReadCloser
	Size        int64
	Name        string
	ContentType string
	Disposition string
}

// APIResponse is the JSON envelope of every API reply.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// AuditReport lists records that break the record/blob consistency rule.
type AuditReport struct {
	Checked     int          `json:"checked"`
	Incomplete  []FileRecord `json:"incomplete"`  // location never set
	MissingBlob []FileRecord `json:"missingBlob"` // location set, blob gone
}

// Healthy reports whether the audit found nothing to reconcile.
func (r AuditReport) Healthy() bool {
	return len(r.Incomplete) == 0 && len(r.MissingBlob) == 0
}

// Stats summarizes the metadata index.
type Stats struct {
	Records   int   `json:"records"`
	Finalized int   `json:"finalized"`
	Bytes     int64 `json:"bytes"`
}
