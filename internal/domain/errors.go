package domain

import "errors"

var (
	// ErrInvalidWindow is returned for a zero or inverted date window.
	ErrInvalidWindow = errors.New("invalid date window")
	// ErrInvalidPeriod is returned for a month outside 1-12 or a non-positive year.
	ErrInvalidPeriod = errors.New("invalid billing period")
	// ErrInvalidCompareMode is returned for an unknown comparison mode.
	ErrInvalidCompareMode = errors.New("invalid comparison mode")
	// ErrInvalidHorizon is returned for a forecast or history length outside the supported range.
	ErrInvalidHorizon = errors.New("invalid horizon")
	// ErrStaffNotFound is returned when a staff member cannot be located.
	ErrStaffNotFound = errors.New("staff not found")
	// ErrDataFetchTimeout is returned when the combined record fetch exceeds its deadline.
	ErrDataFetchTimeout = errors.New("could not compute analytics: data fetch timed out")
	// ErrDataFetch is returned when any record fetch fails.
	ErrDataFetch = errors.New("could not compute analytics: data fetch failed")
)
