package nucleus

import "errors"

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrShapeMismatch indicates the true and predicted masks differ in size.
	ErrShapeMismatch = errors.New("nucleus: mask shape mismatch")

	// ErrInvariant indicates the labeler or matcher produced inconsistent state,
	// such as a match that refers to an object with no pixels.
	ErrInvariant = errors.New("nucleus: internal invariant violated")

	// ErrEmptyDataset indicates dataset scoring was asked to score no images.
	ErrEmptyDataset = errors.New("nucleus: no images to score")

	// ErrModelNotFound indicates the model file does not exist.
	ErrModelNotFound = errors.New("nucleus: model file not found")

	// ErrInvalidModel indicates the model file exists but could not be loaded.
	ErrInvalidModel = errors.New("nucleus: invalid model format")

	// ErrCheckpointNotFound indicates no model could be resolved from a checkpoint directory.
	ErrCheckpointNotFound = errors.New("nucleus: no model checkpoint found")
)
