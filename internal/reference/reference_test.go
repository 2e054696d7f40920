package reference

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/mktwh/internal/testutil"
)

const ourAirports = `"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft","continent","iso_country","iso_region","municipality","scheduled_service","gps_code","iata_code"
1,"KATL","large_airport","Hartsfield-Jackson Atlanta International Airport",33.6,-84.4,1026,"NA","US","US-GA","Atlanta","yes","KATL","ATL"
2,"KBOS","large_airport","Boston Logan International Airport",42.3,-71.0,20,"NA","US","US-MA","Boston","yes","KBOS","BOS"
3,"EGLL","large_airport","London Heathrow Airport",51.4,-0.4,83,"EU","GB","GB-ENG","London","yes","EGLL","LHR"
4,"00A","heliport","Total RF Heliport",40.0,-74.9,11,"NA","US","US-PA","Bensalem","no","K00A",""
`

func TestReadLookup(t *testing.T) {
	l, err := ReadLookup(strings.NewReader(testutil.AirportLookupFixture))
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())

	state, ok := l.State("atl")
	assert.True(t, ok)
	assert.Equal(t, "GA", state)

	_, ok = l.State("ZZZ")
	assert.False(t, ok)

	_, err = ReadLookup(strings.NewReader("code,name\nATL,x\n"))
	assert.Error(t, err)
}

func TestBuildLookup(t *testing.T) {
	airports, err := BuildLookup(strings.NewReader(ourAirports), []string{"BOS", "ATL", "LHR", "JFK"})
	require.NoError(t, err)
	require.Len(t, airports, 3)

	assert.Equal(t, Airport{IATA: "ATL", Name: "Hartsfield-Jackson Atlanta International Airport",
		Municipality: "Atlanta", State: "GA", Country: "US"}, airports[0])
	assert.Equal(t, "BOS", airports[1].IATA)
	assert.Equal(t, "ENG", airports[2].State)
}

func TestWriteLookup_RoundTrip(t *testing.T) {
	airports, err := BuildLookup(strings.NewReader(ourAirports), []string{"ATL", "BOS"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLookup(&buf, airports))

	l, err := ReadLookup(&buf)
	require.NoError(t, err)
	a, ok := l.Airport("BOS")
	require.True(t, ok)
	assert.Equal(t, "Boston", a.Municipality)
}

func TestFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(ourAirports))
	}))
	defer srv.Close()

	f := NewFetcher(FetchConfig{URL: srv.URL, Retries: 3, Timeout: 5 * time.Second, Codes: []string{"ATL"}},
		testutil.NewTestLogger(t))

	path := filepath.Join(t.TempDir(), "reference_data", "airport_lookup.csv")
	airports, err := f.FetchToFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, airports, 1)
	assert.Equal(t, int32(3), calls.Load())

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "iata_code,name,municipality,state,iso_country\n"+
		"ATL,Hartsfield-Jackson Atlanta International Airport,Atlanta,GA,US\n", string(body))
}

func TestFetcher_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(FetchConfig{URL: srv.URL, Retries: 1, Timeout: time.Second}, nil)
	_, err := f.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
