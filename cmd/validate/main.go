// Command validate checks a directory of gridded datasets before they are
// served: every variable of every source is loaded, normalized and checked for
// recognizable axes, sane coordinates, a supported sampling and coverage of
// the reference period. Optionally a request file is checked against the
// datasets and the region catalog.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -data-dir data -pattern '{source}.nc' \
//	  -first 1991 -last 2020 \
//	  -requests data/mock/analysis_requests.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/config"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// dataset is one loaded variable.
type dataset struct {
	source   string
	variable string
	raw      *domain.Field
	norm     *domain.Field
}

func (d dataset) String() string { return d.source + "/" + d.variable }

func main() {
	dataDir := flag.String("data-dir", "data", "directory containing NetCDF datasets")
	pattern := flag.String("pattern", "{source}.nc", "dataset file name pattern")
	first := flag.Int("first", 1991, "first year of the reference period")
	last := flag.Int("last", 2020, "last year of the reference period")
	regionsFile := flag.String("regions", "", "optional region catalog YAML; built-in regions otherwise")
	requests := flag.String("requests", "", "optional JSON file of analysis requests to check")
	flag.Parse()

	period, err := domain.ReferenceYears(*first, *last)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(os.Stdout, *dataDir, *pattern, period, *regionsFile, *requests))
}

func run(out io.Writer, dataDir, pattern string, period domain.ReferencePeriod, regionsFile, requestsPath string) int {
	fmt.Fprintln(out, "=== Dataset Validation ===")
	fmt.Fprintln(out)

	store, err := netcdf.NewStore(dataDir, pattern, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}
	catalog, err := loadCatalog(regionsFile)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load regions: %v\n", err)
		return 1
	}

	loading := &phase{name: "Load"}
	sets := loadAll(store, loading)
	if len(sets) == 0 && loading.passed() {
		loading.errorf("no datasets found in %s matching %s", dataDir, pattern)
	}

	phases := []*phase{
		loading,
		validateAxes(sets),
		validateCoordinates(sets),
		validateSampling(sets),
		validateReferenceCoverage(sets, period),
	}
	if requestsPath != "" {
		phases = append(phases, validateRequests(requestsPath, sets, catalog))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}
	fmt.Fprintf(out, "\nVariables: %d, reference period %s\n", len(sets), period)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func loadCatalog(path string) (*domain.Catalog, error) {
	regions := domain.DefaultRegions()
	if path != "" {
		var err error
		if regions, err = config.LoadRegions(path); err != nil {
			return nil, err
		}
	}
	return domain.NewCatalog(regions)
}

// loadAll reads every variable of every source. Load failures are recorded
// in p and the variable is skipped.
func loadAll(store *netcdf.Store, p *phase) []dataset {
	sources, err := store.Sources()
	if err != nil {
		p.errorf("%v", err)
		return nil
	}
	var sets []dataset
	for _, src := range sources {
		vars, err := store.Variables(src)
		if err != nil {
			p.errorf("%s: %v", src, err)
			continue
		}
		for _, v := range vars {
			f, err := store.LoadField(context.Background(), src, v)
			if err != nil {
				p.errorf("%s/%s: %v", src, v, err)
				continue
			}
			sets = append(sets, dataset{source: src, variable: v, raw: f})
		}
	}
	return sets
}

// validateAxes checks that every dimension has a known name and that the
// variable normalizes. Normalized fields are kept for the later phases.
func validateAxes(sets []dataset) *phase {
	p := &phase{name: "Axis recognition"}
	for i := range sets {
		d := &sets[i]
		for _, name := range d.raw.AxisNames() {
			if _, ok := domain.CanonicalAxis(string(name)); !ok {
				p.errorf("%s: dimension %q is not a recognized axis", d, name)
			}
		}
		norm, err := domain.Normalize(d.raw)
		if err != nil {
			p.errorf("%s: %v", d, err)
			continue
		}
		if !norm.HasAxis(domain.AxisLat) || !norm.HasAxis(domain.AxisLon) {
			p.errorf("%s: needs both lat and lon, has %v", d, norm.AxisNames())
		}
		d.norm = norm
	}
	return p
}

func validateCoordinates(sets []dataset) *phase {
	p := &phase{name: "Coordinate invariants"}
	for _, d := range sets {
		if d.norm == nil {
			continue
		}
		if lat, ok := d.norm.Axis(domain.AxisLat); ok {
			for i, v := range lat.Values {
				if v < -90 || v > 90 {
					p.errorf("%s: latitude %g outside [-90, 90]", d, v)
				}
				if i > 0 && v <= lat.Values[i-1] {
					p.errorf("%s: latitude not ascending at index %d", d, i)
				}
			}
		}
		if lon, ok := d.norm.Axis(domain.AxisLon); ok {
			for i, v := range lon.Values {
				if v < -180 || v >= 180 {
					p.errorf("%s: longitude %g outside [-180, 180)", d, v)
				}
				if i > 0 && v <= lon.Values[i-1] {
					p.errorf("%s: longitude not ascending at index %d", d, i)
				}
			}
		}
		if d.norm.CountValid() == 0 {
			p.errorf("%s: no valid cells", d)
		}
	}
	return p
}

func validateSampling(sets []dataset) *phase {
	p := &phase{name: "Monthly sampling"}
	for _, d := range sets {
		if d.norm == nil {
			continue
		}
		t, ok := d.norm.Axis(domain.AxisTime)
		if !ok || t.Len() < 2 {
			continue
		}
		if !domain.IsMonthly(t.Times) && !domain.IsDaily(t.Times) {
			p.errorf("%s: time axis is neither monthly nor daily (%s .. %s, %d steps)",
				d, t.Times[0].Format("2006-01-02"), t.Times[t.Len()-1].Format("2006-01-02"), t.Len())
		}
	}
	return p
}

// validateReferenceCoverage checks that time-bearing variables have every
// month of the reference period with at least one valid cell.
func validateReferenceCoverage(sets []dataset, period domain.ReferencePeriod) *phase {
	p := &phase{name: "Reference-period coverage"}
	want := domain.MonthlyTimes(period.Start, period.End)
	for _, d := range sets {
		if d.norm == nil || !d.norm.HasAxis(domain.AxisTime) {
			continue
		}
		t, _ := d.norm.Axis(domain.AxisTime)
		present := make(map[string]bool, t.Len())
		for i, ts := range t.Times {
			if !period.Contains(ts) {
				continue
			}
			slice, err := d.norm.SelectIndex(domain.AxisTime, i)
			if err != nil {
				p.errorf("%s: %v", d, err)
				break
			}
			if slice.CountValid() > 0 {
				present[domain.MonthStart(ts).Format("2006-01")] = true
			}
		}
		var missing []string
		for _, m := range want {
			if !present[m.Format("2006-01")] {
				missing = append(missing, m.Format("2006-01"))
			}
		}
		if len(missing) > 0 {
			p.errorf("%s: %d of %d reference months have no data (first %s)", d, len(missing), len(want), missing[0])
		}
	}
	return p
}

// validateRequests parses a request file and checks regions and sources.
func validateRequests(path string, sets []dataset, catalog *domain.Catalog) *phase {
	p := &phase{name: "Analysis requests"}
	data, err := os.ReadFile(path)
	if err != nil {
		p.errorf("%v", err)
		return p
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		p.errorf("%s: %v", path, err)
		return p
	}
	known := make(map[string]bool, len(sets))
	for _, d := range sets {
		known[d.String()] = true
	}
	for i, raw := range raws {
		req, err := domain.ParseRequest(domain.RawRequest{Value: raw})
		if err != nil {
			p.errorf("request %d: %v", i, err)
			continue
		}
		if _, err := catalog.Lookup(req.Region); err != nil {
			p.errorf("%s: %v", req.ID, err)
		}
		for _, src := range req.Sources {
			for _, v := range []string{src.Variable, src.Mask} {
				if v != "" && !known[src.Name+"/"+v] {
					p.errorf("%s: dataset %s/%s not found", req.ID, src.Name, v)
				}
			}
		}
	}
	return p
}
