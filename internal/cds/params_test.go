package cds

import (
	"testing"

	"github.com/ealonsogzl/era5-fetcher/internal/model"
)

func surfaceDescriptor() model.RequestDescriptor {
	return model.RequestDescriptor{
		Year:       2020,
		Month:      2,
		Dataset:    "reanalysis-era5-single-levels",
		Product:    model.ProductReanalysis,
		Kind:       model.KindSurface,
		BBox:       model.BoundingBox{North: 47, South: 45, East: 11, West: 9},
		TimeSteps:  []string{"00:00", "06:00", "12:00", "18:00"},
		TargetPath: "/data/SURF_202002.nc",
	}
}

func TestRequestParams_Surface(t *testing.T) {
	p := RequestParams(surfaceDescriptor())

	vars, ok := p["variable"].([]string)
	if !ok || len(vars) != 11 {
		t.Fatalf("surface variables = %v, want the fixed 11-entry list", p["variable"])
	}
	if vars[0] != "geopotential" || vars[5] != "Total precipitation" {
		t.Errorf("surface variable list changed: %v", vars)
	}
	if _, has := p["pressure_level"]; has {
		t.Error("surface request must not carry pressure levels")
	}

	days, ok := p["day"].([]string)
	if !ok || len(days) != 31 {
		t.Fatalf("day list = %v, want 01..31", p["day"])
	}
	// Day 31 is requested even for February; the archive drops
	// nonexistent dates itself.
	if days[0] != "01" || days[30] != "31" {
		t.Errorf("day list runs %s..%s", days[0], days[len(days)-1])
	}

	if p["year"] != "2020" || p["month"] != "02" {
		t.Errorf("year/month = %v/%v", p["year"], p["month"])
	}
	if p["format"] != "netcdf" {
		t.Errorf("format = %v", p["format"])
	}
	if p["product_type"] != "reanalysis" {
		t.Errorf("product_type = %v", p["product_type"])
	}

	g, ok := p["grid"].([]float64)
	if !ok || len(g) != 2 || g[0] != 0.25 || g[1] != 0.25 {
		t.Errorf("grid = %v, want [0.25 0.25]", p["grid"])
	}

	area, ok := p["area"].([]string)
	if !ok || len(area) != 4 {
		t.Fatalf("area = %v", p["area"])
	}
	if area[0] != "47" || area[1] != "9" || area[2] != "45" || area[3] != "11" {
		t.Errorf("area = %v, want north/west/south/east", area)
	}
}

func TestRequestParams_PressureLevel(t *testing.T) {
	d := surfaceDescriptor()
	d.Kind = model.KindPressureLevel
	d.PressureLevels = []int{700, 500, 300}

	p := RequestParams(d)

	vars, ok := p["variable"].([]string)
	if !ok || len(vars) != 6 {
		t.Fatalf("pressure-level variables = %v, want the fixed 6-entry list", p["variable"])
	}

	levels, ok := p["pressure_level"].([]string)
	if !ok || len(levels) != 3 {
		t.Fatalf("pressure_level = %v", p["pressure_level"])
	}
	if levels[0] != "700" || levels[2] != "300" {
		t.Errorf("pressure_level = %v", levels)
	}
}

func TestMonthlyMeansParams(t *testing.T) {
	p := MonthlyMeansParams([]int{2019, 2020}, model.BoundingBox{North: 47, South: 45, East: 11, West: 9})

	if p["product_type"] != "monthly_averaged_reanalysis" {
		t.Errorf("product_type = %v", p["product_type"])
	}
	if p["variable"] != "total_precipitation" {
		t.Errorf("variable = %v", p["variable"])
	}
	if p["time"] != "00:00" {
		t.Errorf("time = %v", p["time"])
	}

	years, ok := p["year"].([]string)
	if !ok || len(years) != 2 || years[0] != "2019" {
		t.Errorf("year = %v", p["year"])
	}

	months, ok := p["month"].([]string)
	if !ok || len(months) != 12 || months[0] != "01" || months[11] != "12" {
		t.Errorf("month = %v, want 01..12", p["month"])
	}

	if _, has := p["day"]; has {
		t.Error("monthly means request must not carry a day list")
	}
}
