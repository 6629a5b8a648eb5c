// api/audit/repository.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/propsync/keyway/api/model"
)

const (
	accessLogIndex = "access-logs"
	violationIndex = "access-violations"
)

// Repository persists the append-only access trail: physical access events
// and the violations detected against them.
type Repository interface {
	IndexAccessLog(ctx context.Context, log model.AccessLog) error
	QueryAccessLogs(ctx context.Context, from, to time.Time, propertyID, lockID string) ([]model.AccessLog, error)
	IndexViolation(ctx context.Context, v model.AccessMonitoring) error
	QueryViolations(ctx context.Context, from, to time.Time, propertyID string, severity model.Severity) ([]model.AccessMonitoring, error)
}

type ElasticsearchRepository struct {
	esClient *elasticsearch.Client
}

// NewElasticsearchRepository creates a new repository with a given Elasticsearch client URL.
func NewElasticsearchRepository(esURL string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient}, nil
}

// IndexAccessLog appends one physical access event.
func (r *ElasticsearchRepository) IndexAccessLog(ctx context.Context, log model.AccessLog) error {
	return r.index(ctx, accessLogIndex, log.ID, log)
}

// IndexViolation appends one detected violation.
func (r *ElasticsearchRepository) IndexViolation(ctx context.Context, v model.AccessMonitoring) error {
	return r.index(ctx, violationIndex, v.ID, v)
}

func (r *ElasticsearchRepository) index(ctx context.Context, index, docID string, doc interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      index,
		DocumentID: docID,
		Body:       strings.NewReader(string(data)),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing document: %s", res.String())
	}

	return nil
}

// QueryAccessLogs searches access events within a time frame, optionally
// filtered by property and lock.
func (r *ElasticsearchRepository) QueryAccessLogs(ctx context.Context, from, to time.Time, propertyID, lockID string) ([]model.AccessLog, error) {
	must := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}
	if propertyID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"property_id": propertyID},
		})
	}
	if lockID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"lock_id": lockID},
		})
	}

	hits, err := r.search(ctx, accessLogIndex, must)
	if err != nil {
		return nil, err
	}

	logs := make([]model.AccessLog, len(hits))
	for i, hit := range hits {
		source := hit.(map[string]interface{})["_source"]
		data, _ := json.Marshal(source)
		json.Unmarshal(data, &logs[i])
	}
	return logs, nil
}

// QueryViolations searches detected violations within a time frame,
// optionally filtered by property and severity.
func (r *ElasticsearchRepository) QueryViolations(ctx context.Context, from, to time.Time, propertyID string, severity model.Severity) ([]model.AccessMonitoring, error) {
	must := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"detected_at": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}
	if propertyID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"property_id": propertyID},
		})
	}
	if severity != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"severity": string(severity)},
		})
	}

	hits, err := r.search(ctx, violationIndex, must)
	if err != nil {
		return nil, err
	}

	violations := make([]model.AccessMonitoring, len(hits))
	for i, hit := range hits {
		source := hit.(map[string]interface{})["_source"]
		data, _ := json.Marshal(source)
		json.Unmarshal(data, &violations[i])
	}
	return violations, nil
}

func (r *ElasticsearchRepository) search(ctx context.Context, index string, must []interface{}) ([]interface{}, error) {
	var buf strings.Builder
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
			},
		},
	}
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(index),
		r.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching documents: %s", res.String())
	}

	var rmap map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return nil, err
	}

	hits := rmap["hits"].(map[string]interface{})["hits"].([]interface{})
	return hits, nil
}
