// Package datagokr reads K-water groundwater drought data from the
// data.go.kr open API: the monitoring station list and each station's daily
// Standardized Groundwater Index.
package datagokr

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	"github.com/couchcryptid/drought-risk-etl/internal/domain"
)

const (
	DefaultStationURL = "https://apis.data.go.kr/B500001/drought/drghtFcltyCode/fcltyList"
	DefaultSGIURL     = "https://apis.data.go.kr/B500001/drghtSGIIdex_20211020/operInfoList_20211020"

	// groundwaterStationDiv selects groundwater monitoring stations in the
	// facility list.
	groundwaterStationDiv = "1007"
	source                = "sgi"
)

// JSONGetter fetches and decodes a JSON document.
type JSONGetter interface {
	GetJSON(ctx context.Context, source, url string, dst any) error
}

// Client is a data.go.kr groundwater API client.
type Client struct {
	fetcher    JSONGetter
	serviceKey string
	stationURL string
	sgiURL     string
	pause      time.Duration
	logger     *slog.Logger
}

// NewClient creates a client using the production endpoints.
func NewClient(fetcher JSONGetter, serviceKey string, logger *slog.Logger) *Client {
	return &Client{
		fetcher:    fetcher,
		serviceKey: serviceKey,
		stationURL: DefaultStationURL,
		sgiURL:     DefaultSGIURL,
		pause:      100 * time.Millisecond,
		logger:     logger,
	}
}

type stationItem struct {
	Code flexString `json:"cd"`
	Name flexString `json:"cdnm"`
}

type sgiItem struct {
	StationCode flexString `json:"obsrvtcd"`
	StationName flexString `json:"obsrvtnm"`
	ObservedOn  flexString `json:"obsrvdt"`
	SGI         flexFloat  `json:"ugrwtrl"`
}

// Stations returns every groundwater monitoring station.
func (c *Client) Stations(ctx context.Context) ([]domain.Station, error) {
	q := url.Values{
		"ServiceKey":   {c.serviceKey},
		"pageNo":       {"1"},
		"numOfRows":    {"3000"},
		"_type":        {"json"},
		"fcltyDivCode": {groundwaterStationDiv},
	}

	var env envelope[stationItem]
	if err := c.fetcher.GetJSON(ctx, source, c.stationURL+"?"+q.Encode(), &env); err != nil {
		return nil, fmt.Errorf("fetch station list: %w", err)
	}
	if err := env.check(); err != nil {
		return nil, fmt.Errorf("fetch station list: %w", err)
	}

	stations := make([]domain.Station, 0, len(env.Response.Body.Items.Item))
	for _, it := range env.Response.Body.Items.Item {
		if it.Code == "" {
			continue
		}
		stations = append(stations, domain.Station{Code: string(it.Code), Name: string(it.Name)})
	}
	return stations, nil
}

// Observations returns daily SGI readings for one station between from and
// to (YYYYMMDD, inclusive).
func (c *Client) Observations(ctx context.Context, station domain.Station, from, to string) ([]domain.SGIObservation, error) {
	q := url.Values{
		"serviceKey": {c.serviceKey},
		"pageNo":     {"1"},
		"numOfRows":  {"366"},
		"obsrvtCd":   {station.Code},
		"stDt":       {from},
		"edDt":       {to},
		"_type":      {"json"},
	}

	var env envelope[sgiItem]
	if err := c.fetcher.GetJSON(ctx, source, c.sgiURL+"?"+q.Encode(), &env); err != nil {
		return nil, fmt.Errorf("fetch SGI for station %s: %w", station.Code, err)
	}
	if err := env.check(); err != nil {
		return nil, fmt.Errorf("fetch SGI for station %s: %w", station.Code, err)
	}
	if env.Response.Body.TotalCount == 0 {
		return nil, nil
	}

	out := make([]domain.SGIObservation, 0, len(env.Response.Body.Items.Item))
	for _, it := range env.Response.Body.Items.Item {
		obs := domain.SGIObservation{
			StationCode: string(it.StationCode),
			StationName: string(it.StationName),
			ObservedOn:  string(it.ObservedOn),
			SGI:         float64(it.SGI),
		}
		if obs.StationCode == "" {
			obs.StationCode = station.Code
		}
		if obs.StationName == "" {
			obs.StationName = station.Name
		}
		out = append(out, obs)
	}
	return out, nil
}

// CollectSGI fetches SGI readings for every station that belongs to a
// catalog region. Stations are queried one at a time with a short pause;
// a station that fails is logged and skipped. Only a failed station list
// fails the collection.
func (c *Client) CollectSGI(ctx context.Context, catalog domain.Catalog, from, to string) ([]domain.SGIObservation, error) {
	all, err := c.Stations(ctx)
	if err != nil {
		return nil, err
	}
	stations := domain.StationsInCatalog(catalog, all)
	c.logger.Info("collecting SGI observations", "stations", len(stations), "from", from, "to", to)

	var out []domain.SGIObservation
	for i, st := range stations {
		if i > 0 && !sleepWithContext(ctx, c.pause) {
			return nil, ctx.Err()
		}
		obs, err := c.Observations(ctx, st, from, to)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("skipping station", "station", st.Name, "code", st.Code, "error", err)
			continue
		}
		out = append(out, obs...)
	}
	return out, nil
}

func nan() float64 { return math.NaN() }

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
