// Package pipeline runs the stages of an image scan over a ScanReport.
//
// A Pipeline holds an ordered list of Steps (load, scan, summarize). Every
// step is timed and recorded on the report. Errors stop the pipeline unless
// it was built with WithContinueOnError, and a cancelled context marks the
// report as cancelled rather than failed.
//
// BatchProcessor builds one pipeline per image and runs them with a bounded
// number of goroutines.
package pipeline
