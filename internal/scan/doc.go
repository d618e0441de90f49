// Package scan tiles an image into overlapping windows and runs the opacity
// search on every pair of neighbouring windows.
//
// Window origins stride from 0 up to, but not including, image height minus
// window height (and likewise for columns). Each window is compared with its
// left neighbour and with the window one row above it at the same column
// offset. Windows are never compared with their right, lower or diagonal
// neighbours.
//
// Only the previous row of histograms is kept in memory. Histogram
// extraction and pair searches of one row run concurrently, but results are
// recorded and reported to the Observer in row-major scan order, so a scan
// is deterministic regardless of the number of workers.
package scan
