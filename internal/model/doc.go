// Package model defines the data structures shared by the scan pipeline,
// the report writers and the scan history.
//
// This package contains the following main types:
//   - ScanReport: The result of scanning one image
//   - Settings: The scan parameters applied to an image
//   - Summary: A condensed view of the opacity frequency table
//   - PairDiagnostic: Details of one window pair with a detected opacity
//
// The models are serializable to JSON for report output and database storage.
package model
