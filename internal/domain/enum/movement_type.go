package enum

import (
	"database/sql/driver"
	"fmt"
)

// MovementType is the direction of an inventory ledger entry
type MovementType string

const (
	MovementIn  MovementType = "In"
	MovementOut MovementType = "Out"
)

// ReferenceType records what caused an inventory ledger entry
type ReferenceType string

const (
	ReferenceReservation ReferenceType = "reservation"
	ReferenceRelease     ReferenceType = "release"
	ReferencePurchase    ReferenceType = "purchase"
	ReferenceAdjustment  ReferenceType = "adjustment"
)

func (t MovementType) String() string  { return string(t) }
func (t ReferenceType) String() string { return string(t) }

func (t MovementType) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *MovementType) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*t = MovementType(v)
	case []byte:
		*t = MovementType(v)
	default:
		return fmt.Errorf("cannot scan %T into MovementType", value)
	}
	return nil
}

func (t ReferenceType) Value() (driver.Value, error) {
	return string(t), nil
}

func (t *ReferenceType) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*t = ReferenceType(v)
	case []byte:
		*t = ReferenceType(v)
	default:
		return fmt.Errorf("cannot scan %T into ReferenceType", value)
	}
	return nil
}
