package doseparser

import (
	"fmt"
	"strings"
)

// Unit is a unit accepted by the dose grammar
type Unit string

const (
	Milligram  Unit = "mg"
	Microgram  Unit = "ug"
	Gram       Unit = "g"
	Millilitre Unit = "ml"
)

// StorageUnit is the unit every stored entry uses
const StorageUnit = Milligram

// VolumePolicy decides what happens to amounts given in millilitres, which
// carry no mass conversion.
type VolumePolicy int

const (
	// VolumeAsMass stores the number unchanged as milligrams
	VolumeAsMass VolumePolicy = iota
	// VolumeReject refuses the dose
	VolumeReject
)

// ParseVolumePolicy reads "mass" or "reject"
func ParseVolumePolicy(s string) (VolumePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "mass", "identity":
		return VolumeAsMass, nil
	case "reject":
		return VolumeReject, nil
	}
	return VolumeAsMass, fmt.Errorf("unknown volume policy %q (want mass or reject)", s)
}

func (p VolumePolicy) String() string {
	if p == VolumeReject {
		return "reject"
	}
	return "mass"
}

// ToMilligrams converts amount in unit to the storage unit
func ToMilligrams(amount float64, unit Unit, policy VolumePolicy) (float64, error) {
	switch unit {
	case Milligram:
		return amount, nil
	case Microgram:
		return amount / 1000, nil
	case Gram:
		return amount * 1000, nil
	case Millilitre:
		if policy == VolumeReject {
			return 0, &ParseError{Kind: KindInvalidAmount, Token: string(unit), Err: ErrVolumeUnit}
		}
		return amount, nil
	}
	return 0, &ParseError{Kind: KindUnexpected, Token: string(unit), Err: fmt.Errorf("unsupported unit %q", unit)}
}
