package upsell

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"upsell-workers/internal/models"
)

const defaultSignalIndex = "product-sales-signals"

// ElasticsearchSource reads signals from a search index that mirrors
// product_sales_signals.
type ElasticsearchSource struct {
	client  *elasticsearch.Client
	index   string
	maxDocs int
}

func NewElasticsearchSource(client *elasticsearch.Client, index string, maxDocs int) *ElasticsearchSource {
	if index == "" {
		index = defaultSignalIndex
	}
	if maxDocs <= 0 {
		maxDocs = 10000
	}
	return &ElasticsearchSource{client: client, index: index, maxDocs: maxDocs}
}

type esSignalsResponse struct {
	Hits struct {
		Hits []struct {
			Source models.ProductSignal `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildSignalsQuery() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"is_active": true},
		},
		"sort":    []interface{}{map[string]interface{}{"sku": "asc"}},
		"_source": []string{"sku", "name", "category", "price", "units_sold"},
	}
}

func (s *ElasticsearchSource) LoadSignals(ctx context.Context) ([]models.ProductSignal, error) {
	body, err := json.Marshal(buildSignalsQuery())
	if err != nil {
		return nil, fmt.Errorf("encode signals query: %w", err)
	}

	size := s.maxDocs
	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search %s failed: %s", s.index, res.Status())
	}

	var parsed esSignalsResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	signals := make([]models.ProductSignal, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		signals = append(signals, hit.Source)
	}
	return signals, nil
}
