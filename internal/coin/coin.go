// Package coin holds the machine's fixed denomination set and the change
// calculator built on it.
package coin

import (
	"errors"
	"fmt"
	"sort"
)

var denominations = [...]int{100, 50, 20, 10, 5}

// ErrUnrepresentable is returned for amounts no combination of coins can pay.
var ErrUnrepresentable = errors.New("amount cannot be paid in coins")

// Denominations returns the valid coins, largest first.
func Denominations() []int {
	out := make([]int, len(denominations))
	copy(out, denominations[:])
	return out
}

// IsCoin reports whether v is a single accepted coin.
func IsCoin(v int) bool {
	for _, d := range denominations {
		if d == v {
			return true
		}
	}
	return false
}

// IsDepositValue reports whether v may be written directly as a deposit.
func IsDepositValue(v int) bool {
	return v == 0 || IsCoin(v)
}

// Count is a number of coins of one denomination.
type Count struct {
	Denomination int `json:"denomination"`
	Count        int `json:"count"`
}

// Breakdown lists the coins handed back, largest denomination first.
type Breakdown []Count

func (b Breakdown) Total() int {
	total := 0
	for _, c := range b {
		total += c.Denomination * c.Count
	}
	return total
}

// ChangeFor splits exchange into coins.
//
// A remainder ending in 5 (or exactly 5) always yields one 5-coin first.
// The rest is paid greedily: as many of the largest fitting coin as
// possible, then each smaller coin in turn.
func ChangeFor(exchange int) (Breakdown, error) {
	if exchange < 0 || exchange%5 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnrepresentable, exchange)
	}

	out := Breakdown{}
	remaining := exchange

	if remaining%10 != 0 || remaining == 5 {
		out = append(out, Count{Denomination: 5, Count: 1})
		remaining -= 5
	}

	if remaining != 0 {
		candidates := fitting(remaining)
		highest := candidates[0]
		n := remaining / highest
		out = append(out, Count{Denomination: highest, Count: n})
		remaining -= highest * n

		for _, d := range candidates[1:] {
			if remaining == 0 {
				break
			}
			if n := remaining / d; n >= 1 {
				out = append(out, Count{Denomination: d, Count: n})
				remaining -= d * n
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Denomination > out[j].Denomination
	})
	return out, nil
}

// fitting returns the denominations not larger than v, largest first.
// v is a positive multiple of 5, so the result is never empty.
func fitting(v int) []int {
	var out []int
	for _, d := range denominations {
		if d <= v {
			out = append(out, d)
		}
	}
	return out
}
