// Package merge concatenates monthly netCDF files into one time-ordered
// series by invoking the cdo and NCO command line tools.
package merge

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/ealonsogzl/era5-fetcher/internal/model"
)

// Commands used to launch the external merge tools. On each invocation
// the command is looked up in the system path.
var (
	CDOCommand    = "cdo"
	NcksCommand   = "ncks"
	NcrcatCommand = "ncrcat"
)

// Strategy selects how monthly files are concatenated.
type Strategy string

const (
	// StrategySimple merges by time with cdo. It handles the usual
	// four-dimensional reanalysis files.
	StrategySimple Strategy = "simple"
	// StrategyFiveDim concatenates along a record dimension with NCO.
	// Required for ensemble files, whose extra member dimension cdo's
	// mergetime does not support.
	StrategyFiveDim Strategy = "5d"
)

// Merge concatenates the kind's monthly files under dir into SURF.nc
// or PLEV.nc using the given strategy. Matching zero monthly files is
// an error; the external tool's failure is propagated as-is.
func Merge(dir string, kind model.Kind, strategy Strategy) error {
	switch strategy {
	case StrategySimple:
		return MergeTime(dir, kind)
	case StrategyFiveDim:
		return MergeRecord(dir, kind)
	default:
		return &model.ConfigError{Msg: fmt.Sprintf("unknown merge strategy %q", strategy)}
	}
}

// MergeTime merges the kind's monthly files by time into a single
// series file, at 64-bit float precision in the classic netCDF
// container (cdo -b F64 -f nc2 mergetime).
func MergeTime(dir string, kind model.Kind) error {
	out := model.MergedPath(dir, kind)
	files, err := monthlyFiles(dir, kind, out)
	if err != nil {
		return err
	}

	args := append([]string{"-b", "F64", "-f", "nc2", "mergetime"}, files...)
	args = append(args, out)
	return runTool(CDOCommand, args...)
}

// MergeRecord concatenates the kind's monthly files along the time
// dimension for datasets carrying an extra ensemble dimension. The
// first file's time dimension is made the record (unlimited) dimension
// in place, then all files are concatenated with ncrcat.
func MergeRecord(dir string, kind model.Kind) error {
	out := model.MergedPath(dir, kind)
	files, err := monthlyFiles(dir, kind, out)
	if err != nil {
		return err
	}

	first := files[0]
	if err := runTool(NcksCommand, "-O", "--mk_rec_dmn", "time", first, first); err != nil {
		return err
	}

	args := append([]string{}, files...)
	args = append(args, out)
	return runTool(NcrcatCommand, args...)
}

// monthlyFiles globs the kind's monthly files in dir, sorted
// lexicographically (which is chronological given the YYYYMM naming).
// The merged output file is excluded so a re-run does not feed a
// previous merge back into itself.
func monthlyFiles(dir string, kind model.Kind, exclude string) ([]string, error) {
	// Only finished .nc files: a crashed download may leave .part
	// staging files behind, and those must never be merged.
	matches, err := filepath.Glob(filepath.Join(dir, kind.Prefix()+"*.nc"))
	if err != nil {
		return nil, err
	}

	files := matches[:0]
	for _, m := range matches {
		if m != exclude {
			files = append(files, m)
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("merge: no %s* files in %s", kind.Prefix(), dir)
	}
	return files, nil
}

// runTool runs an external command, forwarding its standard error, and
// reports a non-zero exit as an error.
func runTool(command string, args ...string) error {
	cmd := exec.Command(command, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", command, err)
	}

	go func() { io.Copy(os.Stderr, stderr) }()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}

	return nil
}
