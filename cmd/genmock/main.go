// Command genmock writes a synthetic monthly surface-temperature dataset as
// NetCDF, plus a sample request file, for local runs and test fixtures. The
// grid has a latitude gradient, a hemispheric seasonal cycle, a warming trend,
// a land/sea mask and a sprinkling of missing cells.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out-dir data \
//	  -start 1981 -years 45 -res 5 -members 3 \
//	  -requests data/mock/analysis_requests.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/temperature-anomaly-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/temperature-anomaly-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "data", "directory for generated NetCDF files")
	pattern := flag.String("pattern", "{source}.nc", "file name pattern, must contain {source}")
	start := flag.Int("start", 1981, "first year")
	years := flag.Int("years", 45, "number of years")
	res := flag.Float64("res", 5, "grid spacing in degrees")
	members := flag.Int("members", 3, "ensemble members in the cmip source, 0 to skip it")
	missing := flag.Float64("missing", 0.002, "fraction of cells written as fill values")
	seed := flag.Uint64("seed", 1, "random seed")
	requests := flag.String("requests", "", "optional output path for sample analysis requests")
	flag.Parse()

	if !strings.Contains(*pattern, "{source}") {
		flag.Usage()
		return fmt.Errorf("-pattern must contain {source}")
	}
	if *years < 1 || *res <= 0 || *res > 90 {
		flag.Usage()
		return fmt.Errorf("need -years >= 1 and 0 < -res <= 90")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	g := grid{start: *start, years: *years, res: *res, missing: *missing, seed: *seed}

	t2m, err := g.reanalysis()
	if err != nil {
		return fmt.Errorf("generate reanalysis: %w", err)
	}
	lsm, err := g.landMask()
	if err != nil {
		return fmt.Errorf("generate land mask: %w", err)
	}
	era5 := filepath.Join(*outDir, strings.Replace(*pattern, "{source}", "era5", 1))
	if err := netcdf.Write(era5, t2m, lsm); err != nil {
		return fmt.Errorf("write %s: %w", era5, err)
	}
	log.Printf("wrote %s: t2m %v, lsm %v, %d missing cells", era5, t2m.Shape(), lsm.Shape(), t2m.Len()-t2m.CountValid())

	if *members > 0 {
		tas, err := g.ensemble(*members)
		if err != nil {
			return fmt.Errorf("generate ensemble: %w", err)
		}
		cmip := filepath.Join(*outDir, strings.Replace(*pattern, "{source}", "cmip", 1))
		if err := netcdf.Write(cmip, tas); err != nil {
			return fmt.Errorf("write %s: %w", cmip, err)
		}
		log.Printf("wrote %s: tas %v", cmip, tas.Shape())
	}

	if *requests != "" {
		if err := writeJSON(*requests, sampleRequests(*members > 0)); err != nil {
			return fmt.Errorf("writing requests: %w", err)
		}
		log.Printf("wrote requests: %s", *requests)
	}
	return nil
}

func sampleRequests(ensemble bool) []domain.AnalysisRequest {
	era5 := domain.SourceSpec{Name: "era5", Variable: "t2m", Offset: -273.15}
	masked := era5
	masked.Mask = "lsm"
	reqs := []domain.AnalysisRequest{
		{ID: "global-monthly", Region: "Global", Sources: []domain.SourceSpec{masked}},
		{ID: "europe-annual", Region: "Europe", Resolution: domain.Annual, Sources: []domain.SourceSpec{era5}},
		{ID: "northern-seasonal-smoothed", Region: "Northern Hemisphere", Resolution: domain.Seasonal, Smoothing: 12, Sources: []domain.SourceSpec{era5}},
		{ID: "europe-field-seasonal", Region: "Europe", Resolution: domain.Seasonal, Kind: domain.KindField, Sources: []domain.SourceSpec{era5}},
		{ID: "arctic-field-monthly", Region: "Arctic", Kind: domain.KindField, Sources: []domain.SourceSpec{era5}},
	}
	if ensemble {
		reqs = append(reqs, domain.AnalysisRequest{
			ID:         "global-ensemble",
			Region:     "Global",
			Resolution: domain.Annual,
			Sources:    []domain.SourceSpec{era5, {Name: "cmip", Variable: "tas", Offset: -273.15}},
		}, domain.AnalysisRequest{
			ID:                 "global-warming-level",
			Region:             "Global",
			Smoothing:          12,
			PreindustrialLevel: true,
			Sources:            []domain.SourceSpec{era5, {Name: "cmip", Variable: "tas", Offset: -273.15}},
		})
	}
	return reqs
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
