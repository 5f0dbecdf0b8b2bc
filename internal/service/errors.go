package service

import "errors"

var (
	// ErrInvalidInput is returned for out-of-range numeric or enum arguments.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDataUnavailable is returned when the food catalog cannot be loaded.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrEmptyQuery is returned when a plan is requested without a question.
	ErrEmptyQuery = errors.New("empty query")
	// ErrGeneration is returned when the text-generation oracle fails.
	ErrGeneration = errors.New("generation failed")
	// ErrIndexUnavailable is returned when the semantic index has not been built.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrCanceled is returned when the caller cancels a planning request.
	ErrCanceled = errors.New("request canceled")
)
