package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("not found")
	ErrInvalidLevel      = errors.New("invalid boost level")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidEvent      = errors.New("invalid analytics event")
	ErrStoreFailure      = errors.New("store failure")
	ErrInvalidInput      = errors.New("invalid input")
)

// storeErr tags an underlying gorm error so callers can match ErrStoreFailure
// while logs keep the cause. Domain sentinels pass through untouched.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	for _, domain := range []error{ErrUnauthorized, ErrNotFound, ErrInvalidLevel, ErrInsufficientFunds, ErrInvalidAmount, ErrInvalidEvent, ErrStoreFailure, ErrInvalidInput} {
		if errors.Is(err, domain) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrStoreFailure, err)
}

// notFoundOr maps gorm.ErrRecordNotFound to ErrNotFound and anything else to a store failure.
func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return storeErr(err)
}
