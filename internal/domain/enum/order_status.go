package enum

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus int

const (
	OrderStatusPending   OrderStatus = 0
	OrderStatusPosted    OrderStatus = 1
	OrderStatusDelivered OrderStatus = 2
	OrderStatusCancelled OrderStatus = 3
	OrderStatusDeleted   OrderStatus = 4
)

var orderStatusNames = [...]string{"Pending", "Posted", "Delivered", "Cancelled", "Deleted"}

// orderTransitions lists the legal next states for each state
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPosted, OrderStatusCancelled, OrderStatusDeleted},
	OrderStatusPosted:  {OrderStatusDelivered},
}

func (s OrderStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("OrderStatus(%d)", int(s))
	}
	return orderStatusNames[s]
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	return s >= OrderStatusPending && s <= OrderStatusDeleted
}

// CanTransitionTo reports whether moving from s to next is legal
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// CountsAsExposure reports whether an order in this state still draws on a member's balance
func (s OrderStatus) CountsAsExposure() bool {
	return s == OrderStatusPending || s == OrderStatusPosted
}

// ParseOrderStatus accepts a status name (case-insensitive) or its numeric value
func ParseOrderStatus(str string) (OrderStatus, error) {
	for i, name := range orderStatusNames {
		if strings.EqualFold(name, strings.TrimSpace(str)) {
			return OrderStatus(i), nil
		}
	}
	var n int
	if _, err := fmt.Sscanf(str, "%d", &n); err == nil && OrderStatus(n).Valid() {
		return OrderStatus(n), nil
	}
	return 0, fmt.Errorf("unknown order status %q", str)
}

func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var i int
		if err := json.Unmarshal(data, &i); err != nil {
			return err
		}
		if !OrderStatus(i).Valid() {
			return fmt.Errorf("unknown order status %d", i)
		}
		*s = OrderStatus(i)
		return nil
	}
	parsed, err := ParseOrderStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s OrderStatus) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *OrderStatus) Scan(value interface{}) error {
	if value == nil {
		*s = OrderStatusPending
		return nil
	}
	switch v := value.(type) {
	case int64:
		*s = OrderStatus(v)
	case int32:
		*s = OrderStatus(v)
	case int:
		*s = OrderStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into OrderStatus", value)
	}
	return nil
}
