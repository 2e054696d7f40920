// Package config holds the shared defaults of a warehouse build.
// The CLI loader in internal/cli/config layers file, environment and flag
// values on top of these.
package config

import (
	"time"

	"github.com/leapstack-labs/mktwh/pkg/core"
)

// Default configuration values.
const (
	DefaultDataDir      = "data"
	DefaultReferenceDir = "reference_data"
	DefaultWarehouseDir = "data_warehouse"
	DefaultStateFile    = ".mktwh/state.db"

	// DefaultWindowStart and DefaultWindowEnd bound the reference warehouse.
	DefaultWindowStart = "2023-01-01"
	DefaultWindowEnd   = "2024-06-30"

	// DefaultTolerance is the maximum absolute reconciliation delta, in dollars.
	DefaultTolerance = 0.01

	DefaultReferenceURL     = "https://davidmegginson.github.io/ourairports-data/airports.csv"
	DefaultReferenceRetries = 3
	DefaultReferenceTimeout = 30 * time.Second

	// AirportLookupFile is the reference lookup file name inside the reference directory.
	AirportLookupFile = "airport_lookup.csv"
)

// DefaultAirportCodes are the IATA codes carried by the OOH extracts.
var DefaultAirportCodes = []string{
	"ATL", "BOS", "BWI", "CLT", "DEN", "DFW", "DTW", "IAH", "JFK", "LAS",
	"LAX", "LGA", "MCO", "MIA", "MSP", "ORD", "PHL", "PHX", "SEA", "SFO",
}

// DefaultWindow returns the default warehouse window.
func DefaultWindow() core.Window {
	return core.MustWindow(DefaultWindowStart, DefaultWindowEnd)
}
