// Package opacity searches for the overlay opacity that best explains the
// difference between two neighbouring window histograms, and accumulates
// the selected opacities of a scan into a frequency table.
//
// Opacities are integer percentages. The value 0 is reserved: it means that
// no candidate opacity improved the fit of a pair, which is the normal
// outcome for uniform or unmarked regions and is not an error.
package opacity
