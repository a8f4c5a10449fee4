package city

import (
	"cmp"
	"net/url"
	"slices"
	"strings"

	"github.com/FACorreiaa/konomads/internal/types"
)

// AllRegions is the region sentinel that disables the region filter.
const AllRegions = "all"

type SortKey string

const (
	SortPopular  SortKey = "popular"
	SortRating   SortKey = "rating"
	SortCostLow  SortKey = "cost-low"
	SortCostHigh SortKey = "cost-high"
)

// SortKeys lists the supported keys in the order the listing page shows them.
var SortKeys = []SortKey{SortPopular, SortRating, SortCostLow, SortCostHigh}

// ParseSortKey resolves a raw query value. Unknown values fall back to
// SortPopular.
func ParseSortKey(raw string) SortKey {
	k := SortKey(strings.TrimSpace(raw))
	if slices.Contains(SortKeys, k) {
		return k
	}
	return SortPopular
}

func (k SortKey) Label() string {
	switch k {
	case SortRating:
		return "Top rated"
	case SortCostLow:
		return "Cost: low to high"
	case SortCostHigh:
		return "Cost: high to low"
	default:
		return "Most popular"
	}
}

// FilterState drives VisibleCities. It is plain input and never persisted.
type FilterState struct {
	SearchText string
	Region     string
	SortKey    SortKey
}

func DefaultFilterState() FilterState {
	return FilterState{SearchText: "", Region: AllRegions, SortKey: SortPopular}
}

// Reset returns the default state.
func (f FilterState) Reset() FilterState {
	return DefaultFilterState()
}

// IsDefault reports whether f produces the unfiltered listing.
func (f FilterState) IsDefault() bool {
	return f.normalized() == DefaultFilterState()
}

func (f FilterState) normalized() FilterState {
	return FilterState{
		SearchText: strings.TrimSpace(f.SearchText),
		Region:     f.Region,
		SortKey:    ParseSortKey(string(f.SortKey)),
	}
}

// ParseFilterState reads q, region and sort from a query string. A missing
// or empty region means AllRegions.
func ParseFilterState(q url.Values) FilterState {
	region := q.Get("region")
	if region == "" {
		region = AllRegions
	}
	return FilterState{
		SearchText: q.Get("q"),
		Region:     region,
		SortKey:    ParseSortKey(q.Get("sort")),
	}.normalized()
}

// Values encodes f back into query parameters, omitting defaults.
func (f FilterState) Values() url.Values {
	n := f.normalized()
	v := url.Values{}
	if n.SearchText != "" {
		v.Set("q", n.SearchText)
	}
	if n.Region != AllRegions {
		v.Set("region", n.Region)
	}
	if n.SortKey != SortPopular {
		v.Set("sort", string(n.SortKey))
	}
	return v
}

// Result is the ordered visible subset. Cities is never nil.
type Result struct {
	Cities []types.City
	Count  int
}

func (r Result) Empty() bool {
	return r.Count == 0
}

// VisibleCities filters and orders cities for display. The input slice is not
// modified; the result is a new slice, empty rather than nil when nothing
// matches. Equal sort keys keep their input order.
//
// Region is matched exactly unless it is AllRegions, so an empty Region
// matches no city. Use DefaultFilterState or ParseFilterState to get the
// unfiltered listing.
func VisibleCities(cities []types.City, f FilterState) Result {
	f = f.normalized()
	needle := strings.ToLower(f.SearchText)

	out := make([]types.City, 0, len(cities))
	for _, c := range cities {
		if f.Region != AllRegions && c.Region != f.Region {
			continue
		}
		if needle != "" && !matchesSearch(c, needle) {
			continue
		}
		out = append(out, c)
	}

	slices.SortStableFunc(out, comparator(f.SortKey))
	return Result{Cities: out, Count: len(out)}
}

func matchesSearch(c types.City, needle string) bool {
	return strings.Contains(strings.ToLower(c.Name), needle) ||
		strings.Contains(strings.ToLower(c.Region), needle) ||
		strings.Contains(strings.ToLower(c.Description), needle)
}

func comparator(k SortKey) func(a, b types.City) int {
	switch k {
	case SortRating:
		return func(a, b types.City) int { return cmp.Compare(b.Rating, a.Rating) }
	case SortCostLow:
		return func(a, b types.City) int { return cmp.Compare(a.MonthlyCost, b.MonthlyCost) }
	case SortCostHigh:
		return func(a, b types.City) int { return cmp.Compare(b.MonthlyCost, a.MonthlyCost) }
	default:
		return func(a, b types.City) int { return cmp.Compare(b.NomadsNow, a.NomadsNow) }
	}
}

// Regions returns the distinct regions of cities in first-seen order.
func Regions(cities []types.City) []string {
	seen := make(map[string]struct{}, len(cities))
	regions := make([]string, 0)
	for _, c := range cities {
		if _, ok := seen[c.Region]; ok {
			continue
		}
		seen[c.Region] = struct{}{}
		regions = append(regions, c.Region)
	}
	return regions
}
