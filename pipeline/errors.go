package pipeline

import "errors"

var (
	// ErrSchema reports that an expected column is absent from the table.
	ErrSchema = errors.New("column not found")

	// ErrEmptyData reports that no usable rows remain at some stage.
	ErrEmptyData = errors.New("no usable rows")

	// ErrDateRange reports inverted bounds or dates outside the supported
	// historical range.
	ErrDateRange = errors.New("date range out of bounds")
)
