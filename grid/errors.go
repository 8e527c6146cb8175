package grid

import "errors"

var (
	// ErrBadConfig indicates an invalid grid configuration: empty order or
	// channel lists, channel tuples whose length differs from the number
	// of convolutions, kinematics without a matching interpolation, or
	// scale forms referencing undeclared scale dimensions.
	ErrBadConfig = errors.New("grid: invalid grid configuration")

	// ErrBadIndex indicates an order, channel or bin index outside the
	// declared lists, or a mask whose length disagrees with them.
	ErrBadIndex = errors.New("grid: index outside declared range")

	// ErrBinNotFound indicates a fill observable outside all bin limits.
	ErrBinNotFound = errors.New("grid: observable outside all bin limits")

	// ErrBadChannel indicates an empty channel or entries with unequal
	// PID tuple lengths.
	ErrBadChannel = errors.New("grid: invalid channel")

	// ErrBadBins indicates inconsistent bin limits or normalizations.
	ErrBadBins = errors.New("grid: invalid bin specification")

	// ErrBinsNotConnected indicates a bin-merge range that does not lie
	// within one contiguous slice.
	ErrBinsNotConnected = errors.New("grid: bins are not simply connected")

	// ErrIncompatible indicates two grids (or a grid and a set of
	// convolution functions) whose configurations cannot be combined.
	ErrIncompatible = errors.New("grid: incompatible configurations")

	// ErrOperatorShape indicates an evolution operator tensor whose data
	// length disagrees with its declared axes.
	ErrOperatorShape = errors.New("grid: operator shape mismatch")

	// ErrMissingAlphas indicates a renormalization scale required during
	// evolution that has no entry in the supplied couplings table.
	ErrMissingAlphas = errors.New("grid: no coupling for renormalization scale")

	// ErrNotFKTable indicates a grid that violates the FK-table
	// invariants: a single all-zero order and unit-factor single-entry
	// channels.
	ErrNotFKTable = errors.New("grid: not an FK table")

	// ErrBadMagic indicates a file that does not start with the expected
	// magic bytes.
	ErrBadMagic = errors.New("grid: bad file magic")

	// ErrBadVersion indicates an unsupported file format version.
	ErrBadVersion = errors.New("grid: unsupported file format version")

	// ErrParse indicates an unparsable textual order, channel or bin
	// specification.
	ErrParse = errors.New("grid: parse error")
)
