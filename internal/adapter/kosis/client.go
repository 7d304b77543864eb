// Package kosis reads municipal water supply statistics (per-capita daily
// supply and supply penetration rate) from the KOSIS open API.
package kosis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
)

const (
	DefaultBaseURL = "https://kosis.kr/openapi/Param/statisticsParameterData.do"

	orgID = "211"
	tblID = "DT_211002_G008"

	ItemPerCapita   = "1621113103117118T6"
	ItemPenetration = "1621113103117118T3"

	totalRow = "전체"
	source   = "kosis"
)

// BodyGetter fetches a raw response body.
type BodyGetter interface {
	GetBody(ctx context.Context, source, url string) ([]byte, error)
}

// Client is a KOSIS statistics client.
type Client struct {
	fetcher BodyGetter
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a KOSIS client using the production endpoint.
func NewClient(fetcher BodyGetter, apiKey string, logger *slog.Logger) *Client {
	return &Client{fetcher: fetcher, apiKey: apiKey, baseURL: DefaultBaseURL, logger: logger}
}

// APIError is the error object KOSIS returns in place of data.
type APIError struct {
	Code    string `json:"err"`
	Message string `json:"errMsg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kosis error %s: %s", e.Code, e.Message)
}

// row is one KOSIS data point. DT is always a string.
type row struct {
	Period string `json:"PRD_DE"`
	Region string `json:"C1_NM"`
	ItemID string `json:"ITM_ID"`
	Value  string `json:"DT"`
}

// WaterSupply returns per-capita supply and penetration rate per region for
// one statistics year. Province totals are dropped and only regions with
// both items are returned, in the order KOSIS lists them.
func (c *Client) WaterSupply(ctx context.Context, year string) ([]domain.WaterSupplyStat, error) {
	body, err := c.fetcher.GetBody(ctx, source, c.requestURL(year))
	if err != nil {
		return nil, fmt.Errorf("fetch water supply statistics: %w", err)
	}
	rows, err := decodeRows(body)
	if err != nil {
		return nil, err
	}
	stats := pivot(rows, year)
	c.logger.Info("kosis water supply loaded", "year", year, "rows", len(rows), "regions", len(stats))
	return stats, nil
}

func (c *Client) requestURL(year string) string {
	items := strings.Join([]string{ItemPenetration, ItemPerCapita}, "+")
	return c.baseURL + "?method=getList" +
		"&apiKey=" + url.QueryEscape(c.apiKey) +
		"&itmId=" + items + "+" +
		"&objL1=ALL&objL2=&objL3=&objL4=&objL5=&objL6=&objL7=&objL8=" +
		"&format=json&jsonVD=Y&prdSe=Y" +
		"&startPrdDe=" + url.QueryEscape(year) +
		"&endPrdDe=" + url.QueryEscape(year) +
		"&orgId=" + orgID + "&tblId=" + tblID
}

func decodeRows(body []byte) ([]row, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var apiErr APIError
		if err := json.Unmarshal(body, &apiErr); err != nil {
			return nil, fmt.Errorf("decode kosis response: %w", err)
		}
		if apiErr.Code == "" {
			return nil, fmt.Errorf("decode kosis response: unexpected object")
		}
		return nil, &apiErr
	}
	var rows []row
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode kosis response: %w", err)
	}
	return rows, nil
}

func pivot(rows []row, year string) []domain.WaterSupplyStat {
	type pair struct {
		perCapita, penetration *float64
	}
	var order []string
	byRegion := make(map[string]*pair)

	for _, r := range rows {
		name := strings.TrimSpace(r.Region)
		if r.Period != year || name == "" || name == totalRow {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(r.Value), ",", ""), 64)
		if err != nil {
			continue
		}
		p, ok := byRegion[name]
		if !ok {
			p = &pair{}
			byRegion[name] = p
			order = append(order, name)
		}
		switch r.ItemID {
		case ItemPerCapita:
			p.perCapita = &v
		case ItemPenetration:
			p.penetration = &v
		}
	}

	out := make([]domain.WaterSupplyStat, 0, len(order))
	for _, name := range order {
		p := byRegion[name]
		if p.perCapita == nil || p.penetration == nil {
			continue
		}
		out = append(out, domain.WaterSupplyStat{Region: name, PerCapitaUse: *p.perCapita, PenetrationPct: *p.penetration})
	}
	return out
}
