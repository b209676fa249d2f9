package models

import (
	"errors"
	"fmt"
)

// Application-wide standard errors
var (
	// Input & Parsing Errors
	ErrProcedureNotFound = errors.New("procedure not found")
	ErrEmptyProcedure    = errors.New("procedure has no steps")
	ErrInvalidAsset      = errors.New("invalid asset reference")
	ErrInvalidPayload    = errors.New("invalid review payload")
	ErrNothingToDo       = errors.New("neither procedure, endpoint nor input_json is supplied")
	ErrNoProcedureInput  = errors.New("no procedure input: supply procedure or input_json")

	// Asset Resolution Errors
	ErrAssetNotFound         = errors.New("asset not found")
	ErrAssetUnreadable       = errors.New("asset unreadable")
	ErrAssetTooLarge         = errors.New("asset too large")
	ErrFrameExtractionFailed = errors.New("frame extraction failed")

	// Delivery Errors
	ErrDeliveryFailed = errors.New("delivery failed")
)

// ParseError - ошибка разбора исходного описания процедуры (YAML/JSON).
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ResolveError - ошибка разрешения одной ссылки. Err - один из сентинелов выше.
type ResolveError struct {
	Reference AssetReference
	Path      string
	Err       error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s (%s): %v", e.Reference, e.Path, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// AssemblyError оборачивает первую ошибку разрешения координатами шага и ссылки.
type AssemblyError struct {
	StepOrdinal int
	AssetIndex  int
	Reference   AssetReference
	Err         error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("step %d, asset %d (%s): %v", e.StepOrdinal, e.AssetIndex+1, e.Reference, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// DeliveryError - ошибка одного направления доставки.
type DeliveryError struct {
	Sink       Sink
	Kind       FailureKind
	Path       string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s delivery (%s, HTTP %d): %v", e.Sink, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s delivery (%s): %v", e.Sink, e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
