package model

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Kind selects between the two ERA5 product families handled here.
type Kind string

const (
	// KindSurface requests surface single-level fields.
	KindSurface Kind = "surf"
	// KindPressureLevel requests fields on pressure levels.
	KindPressureLevel Kind = "plev"
)

// Valid reports whether k is one of the two supported kinds.
func (k Kind) Valid() bool {
	return k == KindSurface || k == KindPressureLevel
}

// Prefix returns the monthly file name prefix for the kind.
func (k Kind) Prefix() string {
	if k == KindPressureLevel {
		return "PLEV_"
	}
	return "SURF_"
}

// ProductType is the ERA5 model-run type to request.
type ProductType string

const (
	ProductReanalysis      ProductType = "reanalysis"
	ProductEnsembleMembers ProductType = "ensemble_members"
)

// BoundingBox is a geographic subset in decimal degrees.
type BoundingBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Area returns the box in the north/west/south/east order the archive
// expects, formatted as decimal strings.
func (b BoundingBox) Area() []string {
	area := make([]string, 0, 4)
	for _, v := range []float64{b.North, b.West, b.South, b.East} {
		area = append(area, strconv.FormatFloat(v, 'f', -1, 64))
	}
	return area
}

var (
	hourlySteps = []string{
		"00:00", "01:00", "02:00", "03:00", "04:00", "05:00",
		"06:00", "07:00", "08:00", "09:00", "10:00", "11:00",
		"12:00", "13:00", "14:00", "15:00", "16:00", "17:00",
		"18:00", "19:00", "20:00", "21:00", "22:00", "23:00",
	}
	threeHourlySteps = []string{
		"00:00", "03:00", "06:00", "09:00", "12:00", "15:00", "18:00", "21:00",
	}
)

// TimeSteps maps a temporal step in hours to the list of time-of-day
// marks to request. Only steps 1, 3 and 6 are supported; 3 and 6 both
// resolve to the three-hourly marks.
func TimeSteps(step int) ([]string, error) {
	switch step {
	case 1:
		return hourlySteps, nil
	case 3, 6:
		return threeHourlySteps, nil
	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("time step must be 1, 3 or 6, got %d", step)}
	}
}

// TargetPath returns the monthly file path for the given kind and month
// under dir. The path is a pure function of its arguments.
func TargetPath(dir string, kind Kind, year, month int) string {
	return filepath.Join(dir, fmt.Sprintf("%s%04d%02d.nc", kind.Prefix(), year, month))
}

// MergedPath returns the path of the merged series file for the kind.
func MergedPath(dir string, kind Kind) string {
	if kind == KindPressureLevel {
		return filepath.Join(dir, "PLEV.nc")
	}
	return filepath.Join(dir, "SURF.nc")
}

// MonthlyMeansPath returns the path of the monthly-means correction file.
func MonthlyMeansPath(dir string) string {
	return filepath.Join(dir, "tpmm.nc")
}

// RequestDescriptor is one month's worth of retrieval parameters.
// Descriptors are built once by the planner and never mutated afterwards.
type RequestDescriptor struct {
	Year  int
	Month int

	Dataset string
	Product ProductType
	Kind    Kind

	BBox      BoundingBox
	TimeSteps []string

	// PressureLevels is set on every descriptor of a pressure-level plan
	// and empty on surface plans.
	PressureLevels []int

	TargetPath string
}

// Name returns the base name of the descriptor's target file.
func (d RequestDescriptor) Name() string {
	return filepath.Base(d.TargetPath)
}

// Plan is a chronological sequence of monthly request descriptors
// covering every month of a date range exactly once.
type Plan []RequestDescriptor

// Names returns the base names of all target files in plan order.
func (p Plan) Names() []string {
	names := make([]string, len(p))
	for i, d := range p {
		names[i] = d.Name()
	}
	return names
}
