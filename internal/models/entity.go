package models

import "time"

// Entity is a record created through a validated form submission.
// Kind is the name of the schema the fields were validated against. Slug is
// unique per kind and copied from the form field named by SlugField.
type Entity struct {
	ID        string            `json:"id" db:"id"`
	Kind      string            `json:"kind" db:"kind"`
	Slug      string            `json:"slug,omitempty" db:"slug"`
	SlugField string            `json:"-" db:"-"`
	Fields    map[string]string `json:"fields" db:"-"`
	FieldsRaw []byte            `json:"-" db:"fields"`
	CreatedBy string            `json:"created_by" db:"created_by"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt time.Time         `json:"updated_at" db:"updated_at"`
}
