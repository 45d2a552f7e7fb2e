package models

import (
	"fmt"
	"strconv"
	"strings"
)

// ContentType tags the metadata variant carried by a content item
type ContentType string

const (
	ContentVideo    ContentType = "VIDEO"
	ContentDocument ContentType = "DOCUMENT"
	ContentLink     ContentType = "LINK"
	ContentText     ContentType = "TEXT"
)

// ValidContentTypes defines the content types accepted by content item forms
var ValidContentTypes = map[ContentType]bool{
	ContentVideo:    true,
	ContentDocument: true,
	ContentLink:     true,
	ContentText:     true,
}

// ContentMetadata is implemented by every per-type metadata variant
type ContentMetadata interface {
	ContentType() ContentType
	Fields() map[string]string
}

// VideoMetadata describes a hosted video
type VideoMetadata struct {
	VideoURL        string `json:"video_url"`
	DurationSeconds int    `json:"duration_seconds"`
	Provider        string `json:"provider,omitempty"`
}

// DocumentMetadata describes an uploaded document
type DocumentMetadata struct {
	FileKey   string `json:"file_key"`
	MimeType  string `json:"mime_type,omitempty"`
	PageCount int    `json:"page_count,omitempty"`
}

// LinkMetadata describes an external resource
type LinkMetadata struct {
	URL          string `json:"url"`
	OpenInNewTab bool   `json:"open_in_new_tab"`
}

// TextMetadata holds inline text content
type TextMetadata struct {
	Body string `json:"body"`
}

func (VideoMetadata) ContentType() ContentType    { return ContentVideo }
func (DocumentMetadata) ContentType() ContentType { return ContentDocument }
func (LinkMetadata) ContentType() ContentType     { return ContentLink }
func (TextMetadata) ContentType() ContentType     { return ContentText }

func (m VideoMetadata) Fields() map[string]string {
	f := map[string]string{
		"video_url":        m.VideoURL,
		"duration_seconds": strconv.Itoa(m.DurationSeconds),
	}
	if m.Provider != "" {
		f["provider"] = m.Provider
	}
	return f
}

func (m DocumentMetadata) Fields() map[string]string {
	f := map[string]string{"file_key": m.FileKey}
	if m.MimeType != "" {
		f["mime_type"] = m.MimeType
	}
	if m.PageCount > 0 {
		f["page_count"] = strconv.Itoa(m.PageCount)
	}
	return f
}

func (m LinkMetadata) Fields() map[string]string {
	return map[string]string{
		"url":             m.URL,
		"open_in_new_tab": strconv.FormatBool(m.OpenInNewTab),
	}
}

func (m TextMetadata) Fields() map[string]string {
	return map[string]string{"body": m.Body}
}

// DecodeMetadata builds the metadata variant for t from already validated form fields.
// Fields belonging to other variants are ignored.
func DecodeMetadata(t ContentType, fields map[string]string) (ContentMetadata, error) {
	get := func(k string) string { return strings.TrimSpace(fields[k]) }

	switch t {
	case ContentVideo:
		m := VideoMetadata{VideoURL: get("video_url"), Provider: get("provider")}
		if v := get("duration_seconds"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("duration_seconds: %w", err)
			}
			m.DurationSeconds = n
		}
		return m, nil
	case ContentDocument:
		m := DocumentMetadata{FileKey: get("file_key"), MimeType: get("mime_type")}
		if v := get("page_count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("page_count: %w", err)
			}
			m.PageCount = n
		}
		return m, nil
	case ContentLink:
		m := LinkMetadata{URL: get("url")}
		if v := get("open_in_new_tab"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("open_in_new_tab: %w", err)
			}
			m.OpenInNewTab = b
		}
		return m, nil
	case ContentText:
		return TextMetadata{Body: fields["body"]}, nil
	default:
		return nil, fmt.Errorf("unknown content type: %q", t)
	}
}
