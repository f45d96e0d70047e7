package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExists     = errors.New("session already exists")
	ErrFontFileNotFound  = errors.New("font file not found")
	ErrFamilyNotFound    = errors.New("family not found in catalog")
	ErrSourceUnreachable = errors.New("remote source unreachable")
	ErrUnsupportedView   = errors.New("unsupported view")
)

// AcquisitionReason classifies why a request could not produce a font set.
type AcquisitionReason string

const (
	ReasonMalformedRequest AcquisitionReason = "malformed_request"
	ReasonEmptyUpload      AcquisitionReason = "empty_upload"
	ReasonUnreachable      AcquisitionReason = "unreachable"
	ReasonEmptyListing     AcquisitionReason = "empty_listing"
	ReasonNoFonts          AcquisitionReason = "no_fonts"
)

// AcquisitionError aborts a submission before any session is created.
type AcquisitionError struct {
	Reason  AcquisitionReason
	Message string
	Err     error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquisition failed (%s): %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("acquisition failed (%s): %s", e.Reason, e.Message)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

func NewAcquisitionError(reason AcquisitionReason, message string, err error) *AcquisitionError {
	return &AcquisitionError{Reason: reason, Message: message, Err: err}
}
