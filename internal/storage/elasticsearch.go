package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	jsoniter "github.com/json-iterator/go"

	"github.com/novagaze/barforge/internal/config"
)

// ElasticSearch is for connecting and indexing data to elastic search.
type ElasticSearch struct {
	ES        *elasticsearch.Client
	IndexName string
	Cfg       *config.ES
}

var elasticSearch ElasticSearch

// InitElasticSearch initializes elastic search connection with configured values.
func InitElasticSearch(cfg *config.ES) (*ElasticSearch, error) {
	if elasticSearch.ES == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = cfg.MaxIdleConns
		t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
		esCfg := elasticsearch.Config{
			Addresses: cfg.Addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: t,
		}
		es, err := elasticsearch.NewClient(esCfg)
		if err != nil {
			return nil, err
		}
		var ctx context.Context
		if cfg.ReqTimeoutSec > 0 {
			timeoutCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ReqTimeoutSec)*time.Second)
			ctx = timeoutCtx
			defer cancel()
		} else {
			ctx = context.Background()
		}
		_, err = es.Ping(es.Ping.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		elasticSearch = ElasticSearch{
			ES:        es,
			IndexName: cfg.IndexName,
			Cfg:       cfg,
		}
	}
	return &elasticSearch, nil
}

// GetElasticSearch returns already prepared elastic search instance.
func GetElasticSearch() *ElasticSearch {
	return &elasticSearch
}

// esData holds either bar or tick data which will be sent to elastic search.
type esData struct {
	Channel       string    `json:"channel"`
	Key           string    `json:"key"`
	Venue         string    `json:"venue"`
	Symbol        string    `json:"symbol"`
	Specification string    `json:"specification,omitempty"`
	Open          float64   `json:"open,omitempty"`
	High          float64   `json:"high,omitempty"`
	Low           float64   `json:"low,omitempty"`
	Close         float64   `json:"close,omitempty"`
	Volume        int64     `json:"volume,omitempty"`
	Bid           float64   `json:"bid,omitempty"`
	Ask           float64   `json:"ask,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CreatedAt     time.Time `json:"created_at"`
}

// CommitBars batch inserts input bar data to elastic search.
func (e *ElasticSearch) CommitBars(appCtx context.Context, data []BarRow) error {
	var buf bytes.Buffer
	for _, bar := range data {
		meta := []byte(fmt.Sprintf(`{"create":{}}%s`, "\n"))
		ed := esData{
			Channel:       "bar",
			Key:           bar.Key,
			Venue:         bar.Venue,
			Symbol:        bar.Symbol,
			Specification: bar.Specification,
			Open:          bar.Open,
			High:          bar.High,
			Low:           bar.Low,
			Close:         bar.Close,
			Volume:        bar.Volume,
			Timestamp:     bar.Timestamp,
			CreatedAt:     time.Now().UTC(),
		}
		esBytes, err := jsoniter.Marshal(ed)
		if err != nil {
			return err
		}
		esBytes = append(esBytes, "\n"...)
		buf.Grow(len(meta) + len(esBytes))
		buf.Write(meta)
		buf.Write(esBytes)
	}
	return e.bulk(appCtx, &buf)
}

// CommitTicks batch inserts input tick data to elastic search.
func (e *ElasticSearch) CommitTicks(appCtx context.Context, data []TickRow) error {
	var buf bytes.Buffer
	for _, tick := range data {
		meta := []byte(fmt.Sprintf(`{"create":{}}%s`, "\n"))
		ed := esData{
			Channel:   "tick",
			Key:       tick.Key,
			Venue:     tick.Venue,
			Symbol:    tick.Symbol,
			Bid:       tick.Bid,
			Ask:       tick.Ask,
			Timestamp: tick.Timestamp,
			CreatedAt: time.Now().UTC(),
		}
		esBytes, err := jsoniter.Marshal(ed)
		if err != nil {
			return err
		}
		esBytes = append(esBytes, "\n"...)
		buf.Grow(len(meta) + len(esBytes))
		buf.Write(meta)
		buf.Write(esBytes)
	}
	return e.bulk(appCtx, &buf)
}

func (e *ElasticSearch) bulk(appCtx context.Context, buf *bytes.Buffer) error {
	var ctx context.Context
	if e.Cfg.ReqTimeoutSec > 0 {
		timeoutCtx, cancel := context.WithTimeout(appCtx, time.Duration(e.Cfg.ReqTimeoutSec)*time.Second)
		ctx = timeoutCtx
		defer cancel()
	} else {
		ctx = context.Background()
	}
	resp, err := e.ES.Bulk(bytes.NewReader(buf.Bytes()), e.ES.Bulk.WithIndex(e.IndexName), e.ES.Bulk.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("code : %v, status : %v", resp.StatusCode, resp.Status())
	}
	_, err = io.Copy(io.Discard, resp.Body)
	if err != nil {
		return err
	}
	return nil
}
