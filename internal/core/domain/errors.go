package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrArticleNotFound      = errors.New("article not found")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrLowQualityGeneration = errors.New("low quality generation")
	ErrTemporary            = errors.New("temporary failure")
)

func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err, kind error) bool {
	return errors.Is(err, kind)
}
