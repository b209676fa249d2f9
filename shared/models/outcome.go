package models

import (
	"errors"
	"fmt"
)

// Sink - направление доставки payload.
type Sink string

const (
	SinkLocal  Sink = "local"
	SinkRemote Sink = "remote"
)

// SinkStatus - итог попытки доставки в одно направление.
type SinkStatus string

const (
	SinkSucceeded SinkStatus = "succeeded"
	SinkFailed    SinkStatus = "failed"
	SinkSkipped   SinkStatus = "skipped"
)

// FailureKind уточняет причину неудачи доставки.
// Таймаут отделён от ошибки соединения: CI должен отличать "сервис медленный" от "сервис недоступен".
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureWrite      FailureKind = "write"
	FailureRender     FailureKind = "render"
	FailureEncode     FailureKind = "encode"
	FailureTimeout    FailureKind = "timeout"
	FailureConnection FailureKind = "connection"
	FailureHTTPStatus FailureKind = "http_status"
)

// SinkOutcome - результат одного направления доставки.
type SinkOutcome struct {
	Status     SinkStatus  `json:"status"`
	Kind       FailureKind `json:"kind,omitempty"`
	Path       string      `json:"path,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Skipped returns the outcome of a sink that was not requested.
func Skipped() SinkOutcome {
	return SinkOutcome{Status: SinkSkipped}
}

// Succeeded returns the outcome of a sink that wrote its artifact to path.
func Succeeded(path string) SinkOutcome {
	return SinkOutcome{Status: SinkSucceeded, Path: path}
}

// Failed builds a failed outcome from a delivery error.
func Failed(err error) SinkOutcome {
	out := SinkOutcome{Status: SinkFailed, Error: err.Error()}
	var de *DeliveryError
	if errors.As(err, &de) {
		out.Kind = de.Kind
		out.Path = de.Path
		out.StatusCode = de.StatusCode
	}
	return out
}

// DeliveryOutcome всегда содержит оба направления; незапрошенное помечается skipped.
type DeliveryOutcome struct {
	Local  SinkOutcome `json:"local"`
	Remote SinkOutcome `json:"remote"`
}

// NewDeliveryOutcome returns an outcome with both sinks skipped.
func NewDeliveryOutcome() DeliveryOutcome {
	return DeliveryOutcome{Local: Skipped(), Remote: Skipped()}
}

// Failed сообщает, упало ли хотя бы одно запрошенное направление.
func (o DeliveryOutcome) Failed() bool {
	return o.Local.Status == SinkFailed || o.Remote.Status == SinkFailed
}

// Err собирает ошибки направлений в одну, либо nil.
func (o DeliveryOutcome) Err() error {
	var errs []error
	if o.Local.Status == SinkFailed {
		errs = append(errs, fmt.Errorf("%s sink: %s", SinkLocal, o.Local.Error))
	}
	if o.Remote.Status == SinkFailed {
		errs = append(errs, fmt.Errorf("%s sink: %s", SinkRemote, o.Remote.Error))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrDeliveryFailed, errors.Join(errs...))
}
