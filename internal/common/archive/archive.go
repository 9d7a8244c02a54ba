package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"agentic-assistant/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

var ErrArchiveFailed = errors.New("ARCHIVE_FAILED")

// Archiver records completed responses for later analysis.
type Archiver interface {
	Archive(ctx context.Context, resp *models.Response) error
}

// ElasticsearchArchiver indexes each response under its request id, so re-archiving the same
// response overwrites rather than duplicates it.
type ElasticsearchArchiver struct {
	client *elasticsearch.Client
	index  string
}

func NewElasticsearchArchiver(client *elasticsearch.Client, index string) *ElasticsearchArchiver {
	return &ElasticsearchArchiver{client: client, index: index}
}

type document struct {
	*models.Response
	TaskType   models.TaskType `json:"task_type,omitempty"`
	ActualCost float64         `json:"actual_cost"`
}

func (a *ElasticsearchArchiver) Archive(ctx context.Context, resp *models.Response) error {
	doc := document{Response: resp}
	if resp.Result != nil {
		doc.TaskType = resp.Result.TaskType
		doc.ActualCost = resp.Result.ActualCost
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrArchiveFailed, err)
	}

	res, err := a.client.Index(
		a.index,
		bytes.NewReader(body),
		a.client.Index.WithDocumentID(resp.RequestID),
		a.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrArchiveFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%w: %s: %s", ErrArchiveFailed, res.Status(), bytes.TrimSpace(msg))
	}
	return nil
}
