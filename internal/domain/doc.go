// Package domain models the thermal-stress forecast dataset derived from
// GFS (Global Forecast System) model output.
//
// # Data Source
//
// Raw fields come from the NOMADS GFS 0.25° hourly dataset. One "source
// snapshot" is a single model run, identified by its endpoint URL, e.g.
// .../gfs_0p25_1hr/gfs20260831/gfs_0p25_1hr_06z. Snapshots are compared by
// endpoint equality only; a different endpoint means a newer run must be
// ingested.
//
// # Grid Conventions
//
// All series share one fixed regular grid. Points are indexed row-major:
//
//	index = latIdx*len(Lons) + lonIdx
//
// Longitudes follow the GFS convention of 0–360 degrees east.
//
// # Encoded Record Format
//
// Each (grid point, timestamp) forecast packs UTCI, WBGT, and the hour
// offset from the forecast start into one int32:
//
//	encoded = (round((utci+100)*10)*2000 + round((wbgt+100)*10))*200 + offset
//
// Temperatures cover [-100.0, +99.9] °C at 0.1 °C steps (2000 values each);
// the offset covers 0–199 hours. The worst case fits in 30 bits, so the
// packed value is always a positive int32. Decoding is exact for the offset
// and within 0.05 °C for the temperatures. See [Encode] and [Decode].
//
// # Solar-Day Alignment
//
// Daily chart detection shifts each grid point's timestamps by a
// longitude-derived hour offset, round(lon/15) wrapped into [-11, +12], so
// a "day" follows local solar time rather than the UTC boundary. A day is
// chartable only when every grid point has all 24 shifted hourly samples.
// See [CompleteDays].
//
// # Merge Semantics
//
// A newer model run supersedes an older one wherever their timestamps
// overlap; non-overlapping samples from both are kept; samples older than
// the retention cutoff are dropped. Merged cells are strictly increasing in
// time, and a prior state violating that ordering is treated as corrupted.
// See [Merge] and [MergeInvariantError].
package domain
