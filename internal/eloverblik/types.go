package eloverblik

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/kaancat/elportal-forside-design-sub009/internal/validation"
)

// DefaultAggregation is used when a request leaves aggregation empty.
const DefaultAggregation = "Hour"

// ErrDateRange is returned when dateFrom is not before dateTo.
var ErrDateRange = errors.New("dateFrom must be before dateTo")

// ConsumptionRequest is the customer API proxy body. The caller supplies
// their own refresh token.
type ConsumptionRequest struct {
	RefreshToken   string   `json:"refreshToken" validate:"required"`
	MeteringPoints []string `json:"meteringPoints" validate:"required,min=1,max=100,dive,len=18,numeric"`
	DateFrom       string   `json:"dateFrom" validate:"required,datetime=2006-01-02"`
	DateTo         string   `json:"dateTo" validate:"required,datetime=2006-01-02"`
	Aggregation    string   `json:"aggregation" validate:"omitempty,oneof=Actual Quarter Hour Day Month Year"`
}

// Validate checks the body and fills defaults.
func (r *ConsumptionRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.Aggregation == "" {
		r.Aggregation = DefaultAggregation
	}
	return checkRange(r.DateFrom, r.DateTo)
}

// ThirdPartyRequest is the third-party API proxy body. The server's
// refresh token is used.
type ThirdPartyRequest struct {
	MeteringPointIDs []string `json:"meteringPointIds" validate:"required,min=1,max=100,dive,len=18,numeric"`
	DateFrom         string   `json:"dateFrom" validate:"required,datetime=2006-01-02"`
	DateTo           string   `json:"dateTo" validate:"required,datetime=2006-01-02"`
	Aggregation      string   `json:"aggregation" validate:"omitempty,oneof=Actual Quarter Hour Day Month Year"`
}

// Validate checks the body and fills defaults.
func (r *ThirdPartyRequest) Validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.Aggregation == "" {
		r.Aggregation = DefaultAggregation
	}
	return checkRange(r.DateFrom, r.DateTo)
}

func checkRange(from, to string) error {
	f, err := time.Parse("2006-01-02", from)
	if err != nil {
		return fmt.Errorf("dateFrom: %w", err)
	}
	t, err := time.Parse("2006-01-02", to)
	if err != nil {
		return fmt.Errorf("dateTo: %w", err)
	}
	if !f.Before(t) {
		return ErrDateRange
	}
	return nil
}

// Result is the merged time series of all batches.
type Result struct {
	Result         []json.RawMessage `json:"result"`
	MeteringPoints int               `json:"meteringPoints"`
	Batches        int               `json:"batches"`
}

type tokenResponse struct {
	Result string `json:"result"`
}

type timeSeriesRequest struct {
	MeteringPoints meteringPointList `json:"meteringPoints"`
}

type meteringPointList struct {
	MeteringPoint []string `json:"meteringPoint"`
}

type timeSeriesResponse struct {
	Result []json.RawMessage `json:"result"`
}

// Batch splits items into consecutive chunks of at most size.
func Batch[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for len(items) > size {
		out = append(out, items[:size:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
