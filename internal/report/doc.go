// Package report renders scan reports.
//
// Every format implements Writer:
//   - SimpleWriter prints a terminal report with an ASCII histogram of the
//     opacity table
//   - JSONWriter encodes the ScanReport itself, one document per line unless
//     indented
//   - FullJSONWriter wraps it with the tool version and per-bin shares
//   - MarkdownWriter builds tables, an alert and a mermaid pie chart
//
// MultiWriter sends one report to several writers, e.g. a file and the
// terminal.
package report
