package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// PaymentOption is how a member settles an order
type PaymentOption string

const (
	PaymentSavings PaymentOption = "Savings"
	PaymentLoan    PaymentOption = "Loan"
	PaymentCash    PaymentOption = "Cash"
)

// PaymentOptions lists every supported option
var PaymentOptions = []PaymentOption{PaymentSavings, PaymentLoan, PaymentCash}

func (p PaymentOption) String() string {
	return string(p)
}

// Valid reports whether p is a supported option
func (p PaymentOption) Valid() bool {
	switch p {
	case PaymentSavings, PaymentLoan, PaymentCash:
		return true
	}
	return false
}

// Constrained reports whether orders paid this way are checked against an eligibility ceiling
func (p PaymentOption) Constrained() bool {
	return p == PaymentSavings || p == PaymentLoan
}

// ParsePaymentOption matches an option name case-insensitively
func ParsePaymentOption(s string) (PaymentOption, error) {
	for _, opt := range PaymentOptions {
		if strings.EqualFold(string(opt), strings.TrimSpace(s)) {
			return opt, nil
		}
	}
	return "", fmt.Errorf("unknown payment option %q", s)
}

func (p PaymentOption) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

func (p *PaymentOption) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParsePaymentOption(str)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p PaymentOption) Value() (driver.Value, error) {
	return string(p), nil
}

func (p *PaymentOption) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*p = ""
	case string:
		*p = PaymentOption(v)
	case []byte:
		*p = PaymentOption(v)
	default:
		return fmt.Errorf("cannot scan %T into PaymentOption", value)
	}
	return nil
}
