// Package database provides SQLite-based storage for overlayscan.
//
// The ScanDB stores every completed scan report so that later scans of the
// same image can be compared, and so that copies of an image stored under
// another path can be found by content fingerprint.
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver; the database
// is a single file in the user's data directory.
package database
