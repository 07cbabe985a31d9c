package swscan

import (
	"errors"
	"fmt"
)

// ConfigurationError is returned for an unrecognised catalog seed.
type ConfigurationError struct {
	Seed string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("swscan: unknown catalog seed %q", e.Seed)
}

// DecodeError is returned when a mandatory property list can't be decoded.
type DecodeError struct {
	What string
	URL  string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("swscan: unable to decode %s from %s: %s", e.What, e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when a product id is not in the catalog.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("swscan: product %s not found in catalog", e.ProductID)
}

// MissingDocumentError is returned when a catalog product doesn't reference a
// document needed to resolve it. Nothing was fetched.
type MissingDocumentError struct {
	ProductID string
	Document  string
}

func (e *MissingDocumentError) Error() string {
	return fmt.Sprintf("swscan: product %s has no %s", e.ProductID, e.Document)
}

// errExtractionMiss marks a text extraction that found nothing. It never leaves the resolver.
var errExtractionMiss = errors.New("swscan: no match in distribution")
