package reference

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/leapstack-labs/mktwh/internal/table"
	"github.com/leapstack-labs/mktwh/internal/warehouse"
)

// FetchConfig configures the OurAirports download.
type FetchConfig struct {
	URL     string
	Retries int
	Timeout time.Duration
	Codes   []string
}

// Fetcher downloads the OurAirports dataset and reduces it to a lookup.
type Fetcher struct {
	client *resty.Client
	cfg    FetchConfig
	logger *slog.Logger
}

// NewFetcher creates a Fetcher. Server errors and transport failures are
// retried up to cfg.Retries times.
func NewFetcher(cfg FetchConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	return &Fetcher{client: client, cfg: cfg, logger: logger}
}

// Fetch downloads the dataset and returns the target airports sorted by code.
func (f *Fetcher) Fetch(ctx context.Context) ([]Airport, error) {
	f.logger.Info("downloading airport data", "url", f.cfg.URL)
	resp, err := f.client.R().SetContext(ctx).Get(f.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", f.cfg.URL, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download %s: unexpected status %s", f.cfg.URL, resp.Status())
	}
	airports, err := BuildLookup(bytes.NewReader(resp.Body()), f.cfg.Codes)
	if err != nil {
		return nil, err
	}
	f.logger.Info("matched target airports", "matched", len(airports), "targets", len(f.cfg.Codes))
	return airports, nil
}

// FetchToFile downloads the dataset and writes the lookup to path.
func (f *Fetcher) FetchToFile(ctx context.Context, path string) ([]Airport, error) {
	airports, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	err = warehouse.WriteFileAtomic(path, func(w io.Writer) error {
		return WriteLookup(w, airports)
	})
	if err != nil {
		return nil, fmt.Errorf("write airport lookup: %w", err)
	}
	f.logger.Info("wrote airport lookup", "path", path)
	return airports, nil
}

// BuildLookup filters an OurAirports airports.csv to the given IATA codes.
// State is the subdivision part of iso_region ("US-GA" -> "GA").
func BuildLookup(r io.Reader, codes []string) ([]Airport, error) {
	raw, err := table.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("parse airports: %w", err)
	}
	idx := func(name string) int { return raw.Index(name) }
	code, name, muni, region, country := idx("iata_code"), idx("name"), idx("municipality"), idx("iso_region"), idx("iso_country")
	if code < 0 || region < 0 {
		return nil, fmt.Errorf("parse airports: header lacks iata_code or iso_region")
	}
	get := func(rec []string, i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Airport
	for _, rec := range raw.Records {
		iata := get(rec, code)
		if iata == "" || !slices.Contains(codes, iata) {
			continue
		}
		state := get(rec, region)
		if _, sub, ok := strings.Cut(state, "-"); ok {
			state = sub
		}
		out = append(out, Airport{
			IATA:         iata,
			Name:         get(rec, name),
			Municipality: get(rec, muni),
			State:        state,
			Country:      get(rec, country),
		})
	}
	slices.SortFunc(out, func(a, b Airport) int { return strings.Compare(a.IATA, b.IATA) })
	return out, nil
}
