// Package main provides the entry point for the overlayscan CLI.
//
// overlayscan estimates the opacity of a uniform light overlay, such as a
// watermark, by comparing the histograms of neighbouring image windows.
//
// Usage:
//
//	overlayscan scan <image>...
//	overlayscan compare <image>
//
// See --help for all available options.
package main

// main is the entry point for overlayscan.
func main() {
	Execute()
}
