package models

import "time"

// UploadKind selects the limits applied to an upload
type UploadKind string

const (
	UploadKindContent UploadKind = "content"
	UploadKindVideo   UploadKind = "video"
)

// ValidUploadKinds defines the upload kinds accepted by the API
var ValidUploadKinds = map[UploadKind]bool{
	UploadKindContent: true,
	UploadKindVideo:   true,
}

// Upload is the stored record of an uploaded file
type Upload struct {
	Key         string     `json:"key" db:"key"`
	Kind        UploadKind `json:"kind" db:"kind"`
	Filename    string     `json:"filename" db:"filename"`
	ContentType string     `json:"content_type" db:"content_type"`
	Size        int64      `json:"size" db:"size"`
	UploadedBy  string     `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// UploadResult is returned once a file is stored
type UploadResult struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Size int64  `json:"size"`
}
