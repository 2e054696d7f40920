package dimension

import (
	"fmt"
	"regexp"
	"strings"
)

// StateKeywords are the cues that place a name in a state. Words match as
// whole, case-sensitive tokens; phrases match case-insensitively on word
// boundaries.
type StateKeywords struct {
	State   string
	Words   []string
	Phrases []string
}

// DefaultGeoKeywords covers the states named by podcast titles.
var DefaultGeoKeywords = []StateKeywords{
	{State: "GA", Words: []string{"GA", "ATL"}, Phrases: []string{"Peach State", "Atlanta", "Georgia"}},
}

type stateRule struct {
	state string
	re    *regexp.Regexp
}

// Inferrer assigns a state to free-text names. Rules are tried in order.
type Inferrer struct {
	rules []stateRule
}

// NewInferrer compiles keyword rules.
func NewInferrer(keywords []StateKeywords) (*Inferrer, error) {
	inf := &Inferrer{}
	for _, k := range keywords {
		var alts []string
		for _, w := range k.Words {
			alts = append(alts, `\b`+regexp.QuoteMeta(w)+`\b`)
		}
		for _, p := range k.Phrases {
			alts = append(alts, `(?i:\b`+strings.ReplaceAll(regexp.QuoteMeta(p), " ", `\s+`)+`\b)`)
		}
		if k.State == "" || len(alts) == 0 {
			return nil, fmt.Errorf("geo keywords: rule for %q needs a state and at least one keyword", k.State)
		}
		re, err := regexp.Compile(strings.Join(alts, "|"))
		if err != nil {
			return nil, fmt.Errorf("geo keywords for %s: %w", k.State, err)
		}
		inf.rules = append(inf.rules, stateRule{state: k.State, re: re})
	}
	return inf, nil
}

// DefaultInferrer returns an Inferrer for DefaultGeoKeywords.
func DefaultInferrer() *Inferrer {
	inf, err := NewInferrer(DefaultGeoKeywords)
	if err != nil {
		panic(err)
	}
	return inf
}

// Infer returns the state a name points to.
func (i *Inferrer) Infer(name string) (string, bool) {
	for _, r := range i.rules {
		if r.re.MatchString(name) {
			return r.state, true
		}
	}
	return "", false
}
