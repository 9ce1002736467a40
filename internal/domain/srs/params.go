package srs

import (
	"time"
)

// Params defines all configurable parameters for the scheduling algorithms
type Params struct {
	// MinInterval is the seed interval after a failure and the smallest
	// gap between two reviews of the same card.
	MinInterval time.Duration

	// SM2
	MinEaseFactor     float64
	SM2FirstInterval  time.Duration
	SM2SecondInterval time.Duration

	// SM5 optimal-factor learning
	OptimalFactorFraction float64
	InitialOptimalFactor  float64
	MinOptimalFactor      float64
	MaxOptimalFactor      float64

	// Simple8
	Simple8FirstInterval time.Duration
	Simple8LapseDecay    float64
	Simple8MinFactor     float64

	// MeanQualityResetAfter is how long a gap between sessions starts a new
	// review period for the global mean quality.
	MeanQualityResetAfter time.Duration
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the default.
type ParamsConfig struct {
	MinInterval time.Duration

	MinEaseFactor     float64
	SM2FirstInterval  time.Duration
	SM2SecondInterval time.Duration

	OptimalFactorFraction float64
	InitialOptimalFactor  float64
	MinOptimalFactor      float64
	MaxOptimalFactor      float64

	Simple8FirstInterval time.Duration
	Simple8LapseDecay    float64

	MeanQualityResetAfter time.Duration
}

const day = 24 * time.Hour

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		MinInterval: 10 * time.Minute,

		MinEaseFactor:     1.3,
		SM2FirstInterval:  1 * day,
		SM2SecondInterval: 6 * day,

		OptimalFactorFraction: 0.5,
		InitialOptimalFactor:  4.0,
		MinOptimalFactor:      1.2,
		MaxOptimalFactor:      10.0,

		// 2.4849 days
		Simple8FirstInterval: time.Duration(2.4849 * float64(day)),
		Simple8LapseDecay:    0.057,
		Simple8MinFactor:     1.2,

		MeanQualityResetAfter: 7 * day,
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	if config.MinInterval > 0 {
		params.MinInterval = config.MinInterval
	}

	if config.MinEaseFactor > 0 {
		params.MinEaseFactor = config.MinEaseFactor
	}
	if config.SM2FirstInterval > 0 {
		params.SM2FirstInterval = config.SM2FirstInterval
	}
	if config.SM2SecondInterval > 0 {
		params.SM2SecondInterval = config.SM2SecondInterval
	}

	if config.OptimalFactorFraction > 0 && config.OptimalFactorFraction <= 1 {
		params.OptimalFactorFraction = config.OptimalFactorFraction
	}
	if config.InitialOptimalFactor > 0 {
		params.InitialOptimalFactor = config.InitialOptimalFactor
	}
	if config.MinOptimalFactor > 0 {
		params.MinOptimalFactor = config.MinOptimalFactor
	}
	if config.MaxOptimalFactor > 0 {
		params.MaxOptimalFactor = config.MaxOptimalFactor
	}

	if config.Simple8FirstInterval > 0 {
		params.Simple8FirstInterval = config.Simple8FirstInterval
	}
	if config.Simple8LapseDecay > 0 {
		params.Simple8LapseDecay = config.Simple8LapseDecay
	}

	if config.MeanQualityResetAfter > 0 {
		params.MeanQualityResetAfter = config.MeanQualityResetAfter
	}

	return params
}
