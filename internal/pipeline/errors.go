package pipeline

import "errors"

// ErrNoImage is returned by ScanStep when no image was loaded into the report.
var ErrNoImage = errors.New("no decoded image in report")
