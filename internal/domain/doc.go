// Package domain models the data that flows through the distribution core:
// terrain, station metadata, point time series, dense grids, per-variable
// configuration and the error taxonomy shared by every stage.
//
// # Grids
//
// A [Grid] is a dense row-major float64 array with shape (ny, nx). Point-mode
// runs use a 1x1 grid, so scalar results (basin-wide last storm day, sun
// angles) travel through the same queues and sinks as full images.
//
// # Stations
//
// Station order is always ascending by id. Interpolation weights, kriging
// systems and the column selection in a distributor all index stations in
// that order, which keeps results bit-reproducible between runs.
//
// Invariant: a distributor's active station set ⊆ [StationMetadata] keys ⊆
// the columns of that variable's [PointSeries]. Missing measurements are
// stored as NaN, never dropped.
//
// # Coordinates
//
// Terrain X grows eastward and Y northward in projected units (metres).
// Slope is degrees from horizontal. Aspect is the downslope direction in
// degrees clockwise from north, -1 on flat pixels.
//
// # Water day
//
// The water year starts on 1 October. [WaterDay] returns decimal days since
// 1 October 00:00 in the timestamp's location; it feeds the precipitation
// distributor's last-storm-day output.
//
// # Errors
//
// Every failure is fatal to the run. Configuration problems surface at
// initialize, missing data and numeric failures at the offending timestep
// (wrapped in [StepError]), queue stalls as [ErrPipelineStall].
package domain
