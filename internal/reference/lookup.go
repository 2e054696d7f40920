// Package reference loads and fetches the airport reference data used to
// place out-of-home media in a state.
package reference

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/mktwh/internal/table"
)

// LookupColumns is the header of airport_lookup.csv.
var LookupColumns = []string{"iata_code", "name", "municipality", "state", "iso_country"}

// Airport is one row of the airport lookup.
type Airport struct {
	IATA         string
	Name         string
	Municipality string
	State        string
	Country      string
}

// Lookup resolves IATA codes to airports.
type Lookup struct {
	byCode map[string]Airport
}

// NewLookup builds a lookup from airports. Later entries win on duplicate codes.
func NewLookup(airports ...Airport) *Lookup {
	l := &Lookup{byCode: make(map[string]Airport, len(airports))}
	for _, a := range airports {
		l.byCode[strings.ToUpper(a.IATA)] = a
	}
	return l
}

// LoadLookup reads airport_lookup.csv.
func LoadLookup(path string) (*Lookup, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open airport lookup: %w", err)
	}
	defer f.Close()
	return ReadLookup(f)
}

// ReadLookup parses an airport lookup. Only iata_code and state are required.
func ReadLookup(r io.Reader) (*Lookup, error) {
	raw, err := table.ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("read airport lookup: %w", err)
	}
	col := func(name string) int {
		for i, h := range raw.Header {
			if strings.ToLower(strings.TrimSpace(h)) == name {
				return i
			}
		}
		return -1
	}
	code, state := col("iata_code"), col("state")
	if code < 0 || state < 0 {
		return nil, fmt.Errorf("airport lookup: header %v lacks iata_code or state", raw.Header)
	}
	name, muni, country := col("name"), col("municipality"), col("iso_country")
	get := func(rec []string, i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	airports := make([]Airport, 0, len(raw.Records))
	for _, rec := range raw.Records {
		if get(rec, code) == "" {
			continue
		}
		airports = append(airports, Airport{
			IATA:         get(rec, code),
			Name:         get(rec, name),
			Municipality: get(rec, muni),
			State:        get(rec, state),
			Country:      get(rec, country),
		})
	}
	return NewLookup(airports...), nil
}

// Airport returns the airport for a code.
func (l *Lookup) Airport(code string) (Airport, bool) {
	a, ok := l.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return a, ok
}

// State returns the state of an airport. ok is false on a miss or an empty state.
func (l *Lookup) State(code string) (string, bool) {
	a, ok := l.Airport(code)
	if !ok || a.State == "" {
		return "", false
	}
	return a.State, true
}

// Len returns the number of airports.
func (l *Lookup) Len() int {
	return len(l.byCode)
}

// WriteLookup writes airports in the airport_lookup.csv format.
func WriteLookup(w io.Writer, airports []Airport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LookupColumns); err != nil {
		return err
	}
	for _, a := range airports {
		if err := cw.Write([]string{a.IATA, a.Name, a.Municipality, a.State, a.Country}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
