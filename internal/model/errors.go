package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrFeatureMismatch indicates a feature vector that does not match the trained column order.
	ErrFeatureMismatch = errors.New("feature mismatch")
	// ErrUnknownLabel indicates a label or class index the encoder was not fitted with.
	ErrUnknownLabel = errors.New("unknown label")
)

// FeatureMismatchError carries the expected and received column order.
type FeatureMismatchError struct {
	Expected []string
	Got      []string
}

func (e *FeatureMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d fields [%s] got %d fields [%s]",
		ErrFeatureMismatch.Error(),
		len(e.Expected), strings.Join(e.Expected, ","),
		len(e.Got), strings.Join(e.Got, ","))
}

// Is makes the error match ErrFeatureMismatch.
func (e *FeatureMismatchError) Is(target error) bool {
	return target == ErrFeatureMismatch
}
