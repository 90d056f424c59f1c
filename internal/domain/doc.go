// Package domain reduces gridded surface-temperature datasets to comparable
// anomaly series and fields.
//
// # Fields
//
// A [Field] is an immutable, row-major array of [Value] cells with named
// axes. Every cell is either a finite number or "no data"; NaN never enters a
// field, so the rule that missing cells drop out of weighted sums is enforced
// by the type rather than by convention.
//
// Raw datasets name their dimensions inconsistently (latitude, nav_lat,
// valid_time, member, ...). [Normalize] maps them onto the canonical axes and
// orders them
//
//	time < year < month|season < realization < quantile < lat < lon
//
// so lat and lon always form the trailing block of a normalized field. A
// spatial reduction walks that block per leading coordinate, and per-cell
// temporal operations can be split into latitude bands and joined back with
// [Concat].
//
// # Conventions
//
// Longitudes are wrapped into [-180, 180) with ((lon + 180) mod 360) - 180.
// Monthly time axes are snapped to the first of the month; a time axis is
// monthly when the median and the range of its consecutive deltas lie within
// 28 to 31 days.
//
// Area weights are cos(lat). A land/sea mask multiplies them, with missing
// mask cells counted as 0.
//
// Temporal reductions weight months by their length in days:
//
//	Annual:   w = days(month) / days(year)       output [year][month=1]
//	Seasonal: w = days(month) / days(season)     output [year][season]
//
// DJF of year Y spans December Y-1 to February Y. A year or season missing any
// of its months is no data, including the partial seasons at either end of the
// data.
//
// Anomalies are taken against a per-calendar-month climatology averaged over
// the [ReferencePeriod], 1991-2020 by default.
//
// # Errors
//
// Only structural problems are errors: unknown axis names, non-monotonic time,
// mismatched grids, negative weights. Missing reference data, incomplete
// windows and zero weight sums produce no-data cells.
package domain
