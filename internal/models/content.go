package models

import (
	"fmt"
	"strings"
)

// InputType identifies the kind of raw input a request carried.
type InputType string

const (
	InputText  InputType = "text"
	InputImage InputType = "image"
	InputPDF   InputType = "pdf"
	InputAudio InputType = "audio"
	InputURL   InputType = "url"
)

// ExtractionMethod identifies how text was obtained from the raw input.
type ExtractionMethod string

const (
	MethodDirect     ExtractionMethod = "direct"
	MethodOCR        ExtractionMethod = "ocr"
	MethodPDF        ExtractionMethod = "pdf"
	MethodASR        ExtractionMethod = "asr"
	MethodTranscript ExtractionMethod = "transcript"
)

// Metadata keys set by the extraction gateway.
const (
	MetaFilename        = "filename"
	MetaMimeType        = "mime_type"
	MetaVideoID         = "video_id"
	MetaDurationSeconds = "duration_seconds"
	MetaLanguage        = "language"
	MetaUploaded        = "uploaded"
)

// ExtractedContent is the normalized payload produced once per request.
type ExtractedContent struct {
	Text             string                 `json:"text"`
	Confidence       float64                `json:"confidence"`
	ExtractionMethod ExtractionMethod       `json:"extraction_method"`
	SourceInputType  InputType              `json:"source_input_type"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the fields every extraction result must carry.
func (c *ExtractedContent) Validate() error {
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %.3f outside [0,1]", c.Confidence)
	}
	if c.ExtractionMethod == MethodDirect && c.Confidence != 1.0 {
		return fmt.Errorf("direct extraction must carry confidence 1.0, got %.3f", c.Confidence)
	}
	switch c.ExtractionMethod {
	case MethodDirect, MethodOCR, MethodPDF, MethodASR, MethodTranscript:
	default:
		return fmt.Errorf("unknown extraction method %q", c.ExtractionMethod)
	}
	return nil
}

// IsEmpty reports whether the content has no usable text.
func (c *ExtractedContent) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == ""
}

// Uploaded reports whether the content came from a file upload rather than typed text.
func (c *ExtractedContent) Uploaded() bool {
	v, _ := c.Metadata[MetaUploaded].(bool)
	return v
}

// DurationSeconds returns the media duration reported by the extraction service, or 0.
func (c *ExtractedContent) DurationSeconds() float64 {
	switch v := c.Metadata[MetaDurationSeconds].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Size is the content size used for cost estimation, in characters.
func (c *ExtractedContent) Size() int {
	return len([]rune(c.Text))
}
