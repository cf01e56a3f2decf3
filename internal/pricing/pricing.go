// Package pricing computes the consumer electricity price from the spot
// price and the fixed Danish tariffs. All amounts are DKK.
package pricing

import (
	"errors"
	"math"
)

// Tariffs in DKK/kWh excluding VAT.
const (
	ElectricityTax        = 0.72
	EnerginetNetTariff    = 0.049
	EnerginetSystemTariff = 0.061
	DefaultGridTariff     = 0.25
	VATRate               = 0.25
)

// DefaultAnnualConsumption is a typical household's kWh per year.
const DefaultAnnualConsumption = 4000

var (
	ErrNegativeConsumption  = errors.New("consumption must not be negative")
	ErrNegativeSubscription = errors.New("subscription must not be negative")
)

// Input holds the variable parts of a price. Prices exclude VAT.
type Input struct {
	SpotPrice           float64 // DKK/kWh
	ProviderMarkup      float64 // DKK/kWh
	GridTariff          *float64
	AnnualConsumption   float64 // kWh
	MonthlySubscription float64 // DKK incl. VAT
}

// Breakdown is the per-kWh composition and resulting costs.
type Breakdown struct {
	SpotPrice        float64 `json:"spotPrice"`
	ProviderMarkup   float64 `json:"providerMarkup"`
	GridTariff       float64 `json:"gridTariff"`
	EnerginetTariffs float64 `json:"energinetTariffs"`
	ElectricityTax   float64 `json:"electricityTax"`
	PriceExVAT       float64 `json:"priceExVat"`
	VAT              float64 `json:"vat"`
	PricePerKWh      float64 `json:"pricePerKwh"`
	MonthlyCost      float64 `json:"monthlyCost"`
	AnnualCost       float64 `json:"annualCost"`
}

// Calculate returns the price per kWh incl. VAT and the monthly and
// annual cost for the given consumption.
func Calculate(in Input) (Breakdown, error) {
	if in.AnnualConsumption < 0 {
		return Breakdown{}, ErrNegativeConsumption
	}
	if in.MonthlySubscription < 0 {
		return Breakdown{}, ErrNegativeSubscription
	}

	grid := DefaultGridTariff
	if in.GridTariff != nil {
		grid = *in.GridTariff
	}

	b := Breakdown{
		SpotPrice:        in.SpotPrice,
		ProviderMarkup:   in.ProviderMarkup,
		GridTariff:       grid,
		EnerginetTariffs: EnerginetNetTariff + EnerginetSystemTariff,
		ElectricityTax:   ElectricityTax,
	}
	b.PriceExVAT = b.SpotPrice + b.ProviderMarkup + b.GridTariff + b.EnerginetTariffs + b.ElectricityTax
	b.VAT = b.PriceExVAT * VATRate
	b.PricePerKWh = b.PriceExVAT + b.VAT

	annualEnergy := b.PricePerKWh * in.AnnualConsumption
	b.AnnualCost = annualEnergy + in.MonthlySubscription*12
	b.MonthlyCost = b.AnnualCost / 12

	return b.rounded(), nil
}

func (b Breakdown) rounded() Breakdown {
	return Breakdown{
		SpotPrice:        round(b.SpotPrice, 4),
		ProviderMarkup:   round(b.ProviderMarkup, 4),
		GridTariff:       round(b.GridTariff, 4),
		EnerginetTariffs: round(b.EnerginetTariffs, 4),
		ElectricityTax:   round(b.ElectricityTax, 4),
		PriceExVAT:       round(b.PriceExVAT, 4),
		VAT:              round(b.VAT, 4),
		PricePerKWh:      round(b.PricePerKWh, 4),
		MonthlyCost:      round(b.MonthlyCost, 2),
		AnnualCost:       round(b.AnnualCost, 2),
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
