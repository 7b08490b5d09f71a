package main

import "tools.zach/dev/cord/internal/paths"

// DataPaths aliases [paths.DataDir] so daemon code can use the path helpers
// without qualifying the package.
type DataPaths = paths.DataDir
