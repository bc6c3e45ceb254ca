// Package planner turns a date range into a month-partitioned retrieval
// plan. The archive serves requests most efficiently when they are
// subset by time, so each calendar month becomes its own request.
package planner

import (
	"time"

	"github.com/ealonsogzl/era5-fetcher/internal/config"
	"github.com/ealonsogzl/era5-fetcher/internal/model"
)

// Build produces the retrieval plan for the configured date range: one
// descriptor per month-end boundary inside [start, end], in
// chronological order. Target paths are deterministic, so re-running
// with the same settings always plans the same files.
func Build(s *config.Settings) (model.Plan, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	start, end, err := s.Dates()
	if err != nil {
		return nil, err
	}

	times, err := model.TimeSteps(s.TimeStep)
	if err != nil {
		return nil, err
	}

	var plan model.Plan
	for cur := monthEnd(start); !cur.After(end); cur = monthEnd(cur.AddDate(0, 0, 1)) {
		year, month := cur.Year(), int(cur.Month())

		d := model.RequestDescriptor{
			Year:       year,
			Month:      month,
			Dataset:    DatasetID(s.Kind, year),
			Product:    s.Product,
			Kind:       s.Kind,
			BBox:       s.BBox,
			TimeSteps:  times,
			TargetPath: model.TargetPath(s.OutputDir, s.Kind, year, month),
		}
		if s.Kind == model.KindPressureLevel {
			d.PressureLevels = s.PressureLevels
		}

		plan = append(plan, d)
	}

	return plan, nil
}

// DatasetID names the archive dataset for a kind and year. Years before
// 1979 live in the preliminary back-extension datasets.
func DatasetID(kind model.Kind, year int) string {
	id := "reanalysis-era5-single-levels"
	if kind == model.KindPressureLevel {
		id = "reanalysis-era5-pressure-levels"
	}
	if year < 1979 {
		id += "-preliminary-back-extension"
	}
	return id
}

// MonthlyMeansDataset is the archive dataset for the monthly-means
// correction retrieval.
const MonthlyMeansDataset = "reanalysis-era5-single-levels-monthly-means"

// MonthlyMeanYears lists, in ascending order, the distinct calendar
// years spanned by the date range widened by one month on each side.
// The widening keeps the correction series covering the edges of the
// forcing period.
func MonthlyMeanYears(start, end time.Time) []int {
	first := start.AddDate(0, -1, 0).Year()
	last := end.AddDate(0, 1, 0).Year()

	years := make([]int, 0, last-first+1)
	for y := first; y <= last; y++ {
		years = append(years, y)
	}
	return years
}

// monthEnd returns the last day of t's month.
func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}
