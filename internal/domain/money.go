package domain

import "fmt"

// Money is a fixed-point amount in minor currency units (cents).
type Money int64

func NewMoney(units, cents int64) Money {
	return Money(units*100 + cents)
}

// MoneyFromFloat rounds a float amount to the nearest cent.
func MoneyFromFloat(v float64) Money {
	if v < 0 {
		return -Money(-v*100 + 0.5)
	}
	return Money(v*100 + 0.5)
}

func (m Money) Cents() int64 { return int64(m) }

func (m Money) Float64() float64 { return float64(m) / 100 }

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
