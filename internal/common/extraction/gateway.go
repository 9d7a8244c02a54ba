package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	commonhttp "agentic-assistant/internal/common/http"
	"agentic-assistant/internal/common/logger"
	"agentic-assistant/internal/models"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrExtractionFailed = errors.New("EXTRACTION_FAILED")
	ErrUnsupportedInput = errors.New("UNSUPPORTED_INPUT")
	ErrNoInput          = errors.New("NO_INPUT")
)

var youtubeURL = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.|m\.)?(?:youtube\.com/watch\?v=|youtu\.be/)([A-Za-z0-9_-]+)`)

type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxFileBytes int64
}

// Gateway turns raw request input into ExtractedContent. Typed text and plain-text uploads are
// handled locally; OCR, PDF, speech and transcript work goes to the extraction service.
type Gateway struct {
	config *Config
	http   *commonhttp.Client
	logger logger.Logger
}

func NewGateway(config *Config, log logger.Logger) *Gateway {
	hc := commonhttp.NewClient(config.Timeout)
	if config.APIKey != "" {
		hc = hc.WithHeader("Authorization", "Bearer "+config.APIKey)
	}
	return &Gateway{
		config: config,
		http:   hc,
		logger: log.WithFields(map[string]interface{}{"component": "extraction"}),
	}
}

type serviceResponse struct {
	Text            string   `json:"text"`
	Confidence      *float64 `json:"confidence"`
	Language        string   `json:"language"`
	DurationSeconds float64  `json:"duration_seconds"`
	Error           string   `json:"error"`
}

// Extract normalizes the request input. A YouTube link in the text wins over an attached file,
// and an attached file wins over plain text.
func (g *Gateway) Extract(ctx context.Context, req *models.Request) (*models.ExtractedContent, error) {
	if req == nil || !req.HasInput() {
		return nil, ErrNoInput
	}

	text := strings.TrimSpace(req.Text)
	if m := youtubeURL.FindStringSubmatch(text); len(m) > 1 {
		return g.transcript(ctx, m[1])
	}

	if req.File != nil && len(req.File.Data) > 0 {
		return g.file(ctx, req.File)
	}

	return &models.ExtractedContent{
		Text:             text,
		Confidence:       1.0,
		ExtractionMethod: models.MethodDirect,
		SourceInputType:  models.InputText,
		Metadata:         map[string]interface{}{},
	}, nil
}

// DetectInputType reports the input type a request would be extracted as, without extracting it.
func DetectInputType(req *models.Request) models.InputType {
	if req == nil {
		return models.InputText
	}
	if youtubeURL.MatchString(req.Text) {
		return models.InputURL
	}
	if req.File == nil || len(req.File.Data) == 0 {
		return models.InputText
	}
	inputType, _ := classify(mimetype.Detect(req.File.Data))
	return inputType
}

func (g *Gateway) transcript(ctx context.Context, videoID string) (*models.ExtractedContent, error) {
	res, err := g.callJSON(ctx, "/api/extract/transcript", map[string]string{"video_id": videoID})
	if err != nil {
		return nil, err
	}

	content := &models.ExtractedContent{
		Text:             strings.TrimSpace(res.Text),
		Confidence:       confidenceOr(res.Confidence, 0.9),
		ExtractionMethod: models.MethodTranscript,
		SourceInputType:  models.InputURL,
		Metadata: map[string]interface{}{
			models.MetaVideoID: videoID,
		},
	}
	if res.DurationSeconds > 0 {
		content.Metadata[models.MetaDurationSeconds] = res.DurationSeconds
	}
	if res.Language != "" {
		content.Metadata[models.MetaLanguage] = res.Language
	}
	return content, nil
}

func (g *Gateway) file(ctx context.Context, f *models.File) (*models.ExtractedContent, error) {
	if g.config.MaxFileBytes > 0 && int64(len(f.Data)) > g.config.MaxFileBytes {
		return nil, fmt.Errorf("%w: file is %d bytes, limit is %d", ErrUnsupportedInput, len(f.Data), g.config.MaxFileBytes)
	}

	mt := mimetype.Detect(f.Data)
	inputType, method := classify(mt)
	meta := map[string]interface{}{
		models.MetaFilename: f.Filename,
		models.MetaMimeType: mt.String(),
		models.MetaUploaded: true,
	}

	g.logger.Info("Processing file", map[string]interface{}{
		"filename": f.Filename,
		"mimeType": mt.String(),
		"bytes":    len(f.Data),
	})

	switch method {
	case models.MethodDirect:
		if !utf8.Valid(f.Data) {
			return nil, fmt.Errorf("%w: %s is not valid UTF-8 text", ErrUnsupportedInput, f.Filename)
		}
		return &models.ExtractedContent{
			Text:             strings.TrimSpace(string(f.Data)),
			Confidence:       1.0,
			ExtractionMethod: models.MethodDirect,
			SourceInputType:  models.InputText,
			Metadata:         meta,
		}, nil
	case models.MethodOCR, models.MethodPDF, models.MethodASR:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, mt.String())
	}

	res, err := g.callFile(ctx, "/api/extract/"+string(method), f.Filename, f.Data, map[string]string{
		"mime_type": mt.String(),
	})
	if err != nil {
		return nil, err
	}

	if res.DurationSeconds > 0 {
		meta[models.MetaDurationSeconds] = res.DurationSeconds
	}
	if res.Language != "" {
		meta[models.MetaLanguage] = res.Language
	}

	return &models.ExtractedContent{
		Text:             strings.TrimSpace(res.Text),
		Confidence:       confidenceOr(res.Confidence, defaultConfidence[method]),
		ExtractionMethod: method,
		SourceInputType:  inputType,
		Metadata:         meta,
	}, nil
}

var defaultConfidence = map[models.ExtractionMethod]float64{
	models.MethodOCR: 0.8,
	models.MethodPDF: 0.95,
	models.MethodASR: 0.85,
}

// classify maps a sniffed MIME type to the input type and the extraction method that serves it.
// An empty method means the type is not supported.
func classify(mt *mimetype.MIME) (models.InputType, models.ExtractionMethod) {
	for m := mt; m != nil; m = m.Parent() {
		s := m.String()
		switch {
		case m.Is("application/pdf"):
			return models.InputPDF, models.MethodPDF
		case strings.HasPrefix(s, "image/"):
			return models.InputImage, models.MethodOCR
		case strings.HasPrefix(s, "audio/"):
			return models.InputAudio, models.MethodASR
		case strings.HasPrefix(s, "text/"), m.Is("application/json"):
			return models.InputText, models.MethodDirect
		}
	}
	return models.InputText, ""
}

func (g *Gateway) callJSON(ctx context.Context, path string, payload interface{}) (*serviceResponse, error) {
	if g.config.BaseURL == "" {
		return nil, fmt.Errorf("%w: extraction service is not configured", ErrExtractionFailed)
	}
	resp, err := g.http.PostJSON(ctx, strings.TrimRight(g.config.BaseURL, "/")+path, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return decode(resp)
}

func (g *Gateway) callFile(ctx context.Context, path, filename string, data []byte, fields map[string]string) (*serviceResponse, error) {
	if g.config.BaseURL == "" {
		return nil, fmt.Errorf("%w: extraction service is not configured", ErrExtractionFailed)
	}
	resp, err := g.http.PostFile(ctx, strings.TrimRight(g.config.BaseURL, "/")+path, filename, data, fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return decode(resp)
}

func decode(resp *http.Response) (*serviceResponse, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode == http.StatusUnsupportedMediaType {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, strings.TrimSpace(string(body)))
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrExtractionFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res serviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrExtractionFailed, err)
	}
	if res.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrExtractionFailed, res.Error)
	}
	return &res, nil
}

func confidenceOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	c := *v
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
