// Package report indexes the result directories a certification campaign leaves
// behind and turns their artifacts into per-run and cross-run summaries.
//
// A run is a directory named report_<date>_<time>_<tz> holding a manifest, one
// subdirectory per tested unit, a timestamped output_*.log and optionally a CSV
// export. Everything here works on text the caller already fetched; the functions
// are pure and safe for concurrent use.
package report
