package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"ski_homes/internal/domain"
)

// Loader reads the static resort table from a CSV file.
type Loader struct {
	Path string
}

// header aliases, lower-cased
var columns = map[string]string{
	"resort":          "resort",
	"name":            "resort",
	"resortregion":    "region",
	"region":          "region",
	"stateorprovince": "state",
	"state":           "state",
	"latitude":        "lat",
	"lat":             "lat",
	"longitude":       "lon",
	"lon":             "lon",
	"lng":             "lon",
	"skiableacres":    "acres",
	"skiable_acres":   "acres",
	"verticaldrop":    "drop",
	"vertical_drop":   "drop",
	"annualsnowfall":  "snow",
	"annual_snowfall": "snow",
}

func (l Loader) ListResorts(ctx context.Context) ([]domain.Resort, error) {
	f, err := os.Open(l.Path)
	if err != nil {
		return nil, fmt.Errorf("open resorts csv: %w", err)
	}
	defer f.Close()
	return Parse(ctx, f)
}

// Parse decodes resort rows. Empty cells are treated as missing values.
func Parse(ctx context.Context, r io.Reader) ([]domain.Resort, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("resorts csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range head {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if key, ok := columns[h]; ok {
			if _, dup := idx[key]; !dup {
				idx[key] = i
			}
		}
	}
	if _, ok := idx["resort"]; !ok {
		return nil, errors.New("resorts csv has no resort column")
	}

	var out []domain.Resort
	seen := map[string]bool{}
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}
		cell := func(key string) string {
			i, ok := idx[key]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		res := domain.Resort{Name: cell("resort"), Region: cell("region")}
		if res.Name == "" {
			return nil, fmt.Errorf("line %d: empty resort name", line)
		}
		if seen[res.Name] {
			return nil, fmt.Errorf("line %d: duplicate resort %q", line, res.Name)
		}
		seen[res.Name] = true
		if s := cell("state"); s != "" {
			res.State = &s
		}

		var nums [5]*float64
		for i, key := range []string{"lat", "lon", "acres", "drop", "snow"} {
			v, err := number(cell(key))
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, key, err)
			}
			nums[i] = v
		}
		if nums[0] != nil && nums[1] != nil {
			res.Coords = &domain.Coords{Lat: *nums[0], Lon: *nums[1]}
		}
		res.SkiableAcres, res.VerticalDrop, res.AnnualSnowfall = nums[2], nums[3], nums[4]
		out = append(out, res)
	}
	return out, nil
}

func number(s string) (*float64, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return &v, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
