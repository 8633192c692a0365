package channels

import "errors"

// Custom channel list errors
var (
	// ErrDuplicateNumber indicates two channels share the same number
	ErrDuplicateNumber = errors.New("duplicate channel number")

	// ErrInvalidNumber indicates a channel number is not a positive integer
	ErrInvalidNumber = errors.New("channel number must be positive")

	// ErrEmptyName indicates a channel has no display name
	ErrEmptyName = errors.New("channel name must not be empty")

	// ErrEmptyTemplate indicates a channel has no URL template
	ErrEmptyTemplate = errors.New("channel url template must not be empty")
)
