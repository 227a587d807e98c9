// Package units converts inventory quantities between the storage unit the
// database persists and the display unit recipes and cashiers work in.
package units

import (
	"errors"
	"math"
)

// Type enumerates how an inventory item is measured.
type Type string

const (
	// Weight items are stored in kilograms and displayed in grams.
	Weight Type = "weight"
	// Quantity items are counted in whole pieces everywhere.
	Quantity Type = "quantity"
)

// GramsPerKilogram is the fixed factor between storage and display for weight items.
const GramsPerKilogram = 1000.0

// Epsilon absorbs float noise introduced by the kg/g conversion.
const Epsilon = 1e-9

// ErrUnknownType indicates a unit type outside Weight and Quantity.
var ErrUnknownType = errors.New("units: unknown unit type")

// Valid reports whether t is a supported unit type.
func (t Type) Valid() bool {
	return t == Weight || t == Quantity
}

// Parse converts raw text into a Type.
func Parse(raw string) (Type, error) {
	t := Type(raw)
	if !t.Valid() {
		return "", ErrUnknownType
	}
	return t, nil
}

// ToDisplay converts a stored quantity (kg or pieces) into grams or pieces.
func ToDisplay(t Type, stored float64) float64 {
	if t == Weight {
		return stored * GramsPerKilogram
	}
	return stored
}

// ToStorage converts grams or pieces into the stored unit (kg or pieces).
func ToStorage(t Type, display float64) float64 {
	if t == Weight {
		return display / GramsPerKilogram
	}
	return display
}

// StorageLabel is the unit symbol used for persisted quantities.
func (t Type) StorageLabel() string {
	if t == Weight {
		return "kg"
	}
	return "pcs"
}

// DisplayLabel is the unit symbol used for recipe and cashier quantities.
func (t Type) DisplayLabel() string {
	if t == Weight {
		return "g"
	}
	return "pcs"
}

// IsWhole reports whether q is an integer within Epsilon.
func IsWhole(q float64) bool {
	return math.Abs(q-math.Round(q)) < Epsilon
}

// FloorUnits floors a ratio after absorbing conversion noise, so 0.7kg*1000/100g
// yields 7 rather than 6.
func FloorUnits(ratio float64) float64 {
	return math.Floor(ratio + Epsilon)
}
