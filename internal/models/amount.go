package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Amount is a non-negative integer in the smallest on-chain unit.
// The zero value is 0. Amounts are immutable: arithmetic returns new values.
type Amount struct {
	i *big.Int
}

func NewAmount(v int64) Amount {
	return Amount{i: big.NewInt(v)}
}

func AmountFromBig(v *big.Int) Amount {
	if v == nil {
		return Amount{}
	}
	return Amount{i: new(big.Int).Set(v)}
}

// ParseAmount parses a base-10 integer string. Negative values are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, NewError(InvalidRequest, fmt.Sprintf("invalid amount %q", s))
	}
	if v.Sign() < 0 {
		return Amount{}, NewError(InvalidRequest, "amount must not be negative")
	}
	return Amount{i: v}, nil
}

func (a Amount) Big() *big.Int {
	if a.i == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.i)
}

func (a Amount) Add(b Amount) Amount {
	return Amount{i: new(big.Int).Add(a.Big(), b.Big())}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{i: new(big.Int).Sub(a.Big(), b.Big())}
}

// MulDiv returns floor(a * mul / div).
func (a Amount) MulDiv(mul, div int64) Amount {
	v := new(big.Int).Mul(a.Big(), big.NewInt(mul))
	return Amount{i: v.Quo(v, big.NewInt(div))}
}

func (a Amount) Cmp(b Amount) int {
	return a.Big().Cmp(b.Big())
}

func (a Amount) Sign() int {
	if a.i == nil {
		return 0
	}
	return a.i.Sign()
}

func (a Amount) IsZero() bool {
	return a.Sign() == 0
}

func (a Amount) String() string {
	if a.i == nil {
		return "0"
	}
	return a.i.String()
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// bare JSON numbers are accepted too
		s = string(data)
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Value stores the amount as a NUMERIC literal.
func (a Amount) Value() (driver.Value, error) {
	return a.String(), nil
}

func (a *Amount) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*a = Amount{}
		return nil
	case []byte:
		s = string(v)
	case string:
		s = v
	case int64:
		*a = NewAmount(v)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Amount", src)
	}
	// NUMERIC columns may come back as "123.0" or similar when cast
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}
	v, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}
