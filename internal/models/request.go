package models

import "strings"

// File is an uploaded file as received at the request boundary.
type File struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data"`
}

// Request is the inbound request shape, independent of transport.
type Request struct {
	Text                  string `json:"text,omitempty"`
	File                  *File  `json:"file,omitempty"`
	ClarificationResponse string `json:"clarification_response,omitempty"`
	PreviousRequestID     string `json:"previous_request_id,omitempty"`
	SessionID             string `json:"session_id,omitempty"`
}

// IsResume reports whether the request answers an earlier clarification question.
func (r *Request) IsResume() bool {
	return strings.TrimSpace(r.PreviousRequestID) != ""
}

// ClarificationAnswer returns the answer to a pending clarification question.
func (r *Request) ClarificationAnswer() string {
	if answer := strings.TrimSpace(r.ClarificationResponse); answer != "" {
		return answer
	}
	return strings.TrimSpace(r.Text)
}

// HasInput reports whether a fresh request carries anything to extract.
func (r *Request) HasInput() bool {
	return strings.TrimSpace(r.Text) != "" || (r.File != nil && len(r.File.Data) > 0)
}
