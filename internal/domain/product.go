package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Cents is a money amount with two decimal places stored as an integer.
// It marshals to and from a JSON decimal string such as "19.99".
type Cents int64

// ParseCents parses a decimal amount with at most two fractional digits.
func ParseCents(s string) (Cents, error) {
	s = strings.TrimSpace(s)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || whole == "-" || (hasFrac && (len(frac) == 0 || len(frac) > 2)) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	neg := strings.HasPrefix(whole, "-")
	w, err := strconv.ParseInt(strings.TrimPrefix(whole, "-"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if w > (math.MaxInt64-f)/100 {
		return 0, fmt.Errorf("amount %q out of range", s)
	}

	c := w*100 + f
	if neg {
		c = -c
	}
	return Cents(c), nil
}

// String renders the amount with exactly two decimals.
func (c Cents) String() string {
	sign := ""
	v := int64(c)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON implements json.Marshaler.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

// UnmarshalJSON accepts either a quoted decimal or a bare JSON number.
func (c *Cents) UnmarshalJSON(b []byte) error {
	s := string(b)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := ParseCents(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Product is an inventory item.
type Product struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     Cents     `json:"price"`
	Stock     int       `json:"stock"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductFilter narrows a product listing. Empty fields do not filter.
type ProductFilter struct {
	Name     string
	Active   *bool
	PriceMin *Cents
	PriceMax *Cents
	Stock    *int
	Limit    int
	Offset   int
}

// ProductUpdate carries a partial update; nil fields keep their value.
type ProductUpdate struct {
	Name   *string
	Price  *Cents
	Stock  *int
	Active *bool
}
