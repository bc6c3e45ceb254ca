package cds

import (
	"fmt"
	"strconv"

	"github.com/ealonsogzl/era5-fetcher/internal/model"
)

// Params is the request body submitted to the archive for one
// retrieval. Values are marshalled to JSON as-is.
type Params map[string]any

// The fixed variable set of a surface request. The irregular spellings
// are the ones the archive accepts; do not normalize them.
var surfaceVariables = []string{
	"geopotential",
	"2m_dewpoint_temperature",
	"surface_thermal_radiation_downwards",
	"surface_solar_radiation_downwards",
	"surface_pressure",
	"Total precipitation",
	"2m_temperature",
	"TOA incident solar radiation",
	"friction_velocity",
	"instantaneous_moisture_flux",
	"instantaneous_surface_sensible_heat_flux",
}

// The fixed variable set of a pressure-level request.
var pressureLevelVariables = []string{
	"geopotential",
	"temperature",
	"u_component_of_wind",
	"v_component_of_wind",
	"relative_humidity",
	"specific_humidity",
}

// grid is the fixed 0.25 degree resolution of every request.
var grid = []float64{0.25, 0.25}

// allDays covers days 01 through 31 regardless of month length; the
// archive filters out days that do not exist in the requested month.
var allDays = numberedList(31)

// allMonths covers months 01 through 12.
var allMonths = numberedList(12)

func numberedList(n int) []string {
	list := make([]string, n)
	for i := range list {
		list[i] = fmt.Sprintf("%02d", i+1)
	}
	return list
}

// RequestParams builds the archive request body for one monthly
// descriptor. Surface and pressure-level requests differ only in their
// variable list and the presence of pressure levels.
func RequestParams(d model.RequestDescriptor) Params {
	p := Params{
		"product_type": string(d.Product),
		"format":       "netcdf",
		"area":         d.BBox.Area(),
		"year":         strconv.Itoa(d.Year),
		"month":        fmt.Sprintf("%02d", d.Month),
		"day":          allDays,
		"time":         d.TimeSteps,
		"grid":         grid,
	}

	if d.Kind == model.KindPressureLevel {
		levels := make([]string, len(d.PressureLevels))
		for i, l := range d.PressureLevels {
			levels[i] = strconv.Itoa(l)
		}
		p["variable"] = pressureLevelVariables
		p["pressure_level"] = levels
	} else {
		p["variable"] = surfaceVariables
	}

	return p
}

// MonthlyMeansParams builds the request body for the monthly-means
// total-precipitation series: all twelve months of every given year.
func MonthlyMeansParams(years []int, bbox model.BoundingBox) Params {
	yearList := make([]string, len(years))
	for i, y := range years {
		yearList[i] = strconv.Itoa(y)
	}

	return Params{
		"product_type": "monthly_averaged_reanalysis",
		"format":       "netcdf",
		"variable":     "total_precipitation",
		"area":         bbox.Area(),
		"year":         yearList,
		"month":        allMonths,
		"time":         "00:00",
		"grid":         grid,
	}
}
