package models

// FormFieldError is a single user-correctable problem with one form field
type FormFieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FormSubmission is the payload for a generic form submit
type FormSubmission struct {
	Fields map[string]string `json:"fields"`
}

// ValidationResult is the response of a dry-run form validation
type ValidationResult struct {
	Valid  bool             `json:"valid"`
	Errors []FormFieldError `json:"errors"`
}
