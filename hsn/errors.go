package hsn

import "errors"

var (
	ErrNoRateColumn = errors.New("rate table has no usable rate column")
	ErrEmptyTable   = errors.New("rate table is empty")
)
