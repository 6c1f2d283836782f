// Package export shapes session results for download: sorting and filtering
// the results table, and rendering CSV or JSON artifacts.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dharsanguruparan/skypulse/internal/model"
)

// SortKey names a sortable results column.
type SortKey string

const (
	SortPrimaryName SortKey = "primaryName"
	SortObjectType  SortKey = "objectType"
	SortMagnitude   SortKey = "magnitude"
	SortDistance    SortKey = "distance"
)

// ParseSortKey accepts the column names used by the results view.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortPrimaryName, SortObjectType, SortMagnitude, SortDistance:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Sort returns a sorted copy of objects. Objects missing the key always sort
// last, whatever the direction; ties keep submission order.
func Sort(objects []model.AstroObject, key SortKey, desc bool) []model.AstroObject {
	out := append([]model.AstroObject(nil), objects...)
	sort.SliceStable(out, func(i, j int) bool {
		a, aok := sortValue(&out[i], key)
		b, bok := sortValue(&out[j], key)
		switch {
		case !aok || !bok:
			return aok && !bok
		case desc:
			return b.less(a)
		default:
			return a.less(b)
		}
	})
	return out
}

type value struct {
	s string
	f float64
}

func (v value) less(o value) bool {
	if v.s != "" || o.s != "" {
		return v.s < o.s
	}
	return v.f < o.f
}

func sortValue(o *model.AstroObject, key SortKey) (value, bool) {
	switch key {
	case SortPrimaryName:
		if o.PrimaryName != nil {
			return value{s: *o.PrimaryName}, true
		}
	case SortObjectType:
		if o.ObjectType != nil {
			return value{s: *o.ObjectType}, true
		}
	case SortMagnitude:
		if o.Magnitude != nil {
			return value{f: *o.Magnitude}, true
		}
	case SortDistance:
		if o.Distance != nil {
			return value{f: *o.Distance}, true
		}
	}
	return value{}, false
}

// Filter keeps objects whose primary name, input name, or type contains text,
// ignoring case. Empty text keeps everything.
func Filter(objects []model.AstroObject, text string) []model.AstroObject {
	needle := strings.ToLower(strings.TrimSpace(text))
	if needle == "" {
		return objects
	}
	var out []model.AstroObject
	for _, o := range objects {
		if contains(o.PrimaryName, needle) || strings.Contains(strings.ToLower(o.InputName), needle) || contains(o.ObjectType, needle) {
			out = append(out, o)
		}
	}
	return out
}

// Select keeps objects whose id is in ids, preserving their order. No ids
// keeps everything.
func Select(objects []model.AstroObject, ids []string) []model.AstroObject {
	if len(ids) == 0 {
		return objects
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []model.AstroObject
	for _, o := range objects {
		if _, ok := want[o.ID]; ok {
			out = append(out, o)
		}
	}
	return out
}

func contains(v *string, needle string) bool {
	return v != nil && strings.Contains(strings.ToLower(*v), needle)
}

type column struct {
	header string
	value  func(*model.AstroObject) string
}

var columns = []column{
	{"ID", func(o *model.AstroObject) string { return o.ID }},
	{"Input Name", func(o *model.AstroObject) string { return o.InputName }},
	{"Primary Name", func(o *model.AstroObject) string { return str(o.PrimaryName) }},
	{"Type", func(o *model.AstroObject) string { return str(o.ObjectType) }},
	{"RA", func(o *model.AstroObject) string { return fixed6(o.RA) }},
	{"Dec", func(o *model.AstroObject) string { return fixed6(o.Dec) }},
	{"Magnitude", func(o *model.AstroObject) string { return num(o.Magnitude) }},
	{"Band", func(o *model.AstroObject) string { return str(o.MagBand) }},
	{"Distance (pc)", func(o *model.AstroObject) string { return num(o.Distance) }},
	{"Spectral Type", func(o *model.AstroObject) string { return str(o.SpectralType) }},
	{"Temperature (K)", func(o *model.AstroObject) string { return num(o.Temperature) }},
	{"Tags", func(o *model.AstroObject) string { return strings.Join(o.Tags, "; ") }},
	{"Sources", func(o *model.AstroObject) string {
		names := make([]string, len(o.Sources))
		for i, s := range o.Sources {
			names[i] = s.SourceName
		}
		return strings.Join(names, "; ")
	}},
}

// CSV writes a header row and one row per object. Every cell is quoted and
// rows are separated by a bare newline. An empty list writes nothing and
// reports false.
func CSV(w io.Writer, objects []model.AstroObject) (bool, error) {
	if len(objects) == 0 {
		return false, nil
	}
	rows := make([]string, 0, len(objects)+1)
	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = quote(c.header)
	}
	rows = append(rows, strings.Join(cells, ","))
	for i := range objects {
		for j, c := range columns {
			cells[j] = quote(c.value(&objects[i]))
		}
		rows = append(rows, strings.Join(cells, ","))
	}
	if _, err := io.WriteString(w, strings.Join(rows, "\n")); err != nil {
		return false, fmt.Errorf("write csv: %w", err)
	}
	return true, nil
}

// JSON writes v indented by two spaces.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

// Filename builds the download name, e.g. skypulse_results_2026-10-16.csv.
func Filename(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("skypulse_%s_%s.%s", prefix, now.UTC().Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func str(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func fixed6(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 6, 64)
}

func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
