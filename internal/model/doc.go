// Package model defines the core domain types for the ERA5 fetcher.
//
// A retrieval run is described by a Plan: an ordered list of
// RequestDescriptor values, one per calendar month, each carrying the
// parameters for a single archive request and the deterministic path the
// resulting file will be written to.
//
// # File naming
//
// Monthly files are named by kind and month:
//
//	SURF_202001.nc   surface single-level data for January 2020
//	PLEV_202001.nc   pressure-level data for January 2020
//
// Merged series reuse the prefix without the month: SURF.nc, PLEV.nc.
// The monthly-means correction file is always tpmm.nc.
package model
