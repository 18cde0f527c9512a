package types

import "errors"

// Amount is a non-negative quantity of atomic units. All wallet-core sums
// are required to fit in 64 bits; Add reports overflow rather than wrapping.
type Amount uint64

// ErrAmountOverflow is returned by Amount.Add when the sum would wrap a
// 64-bit unsigned integer.
var ErrAmountOverflow = errors.New("amount overflow")

// Add returns a+b, or ErrAmountOverflow if the sum cannot be represented.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, ErrAmountOverflow
	}
	return sum, nil
}

// SumAmounts adds every element of amounts, returning ErrAmountOverflow on
// the first overflow encountered.
func SumAmounts(amounts ...Amount) (Amount, error) {
	var total Amount
	var err error
	for _, a := range amounts {
		total, err = total.Add(a)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// IsPrettyAmount reports whether amount is a member of the published set of
// "pretty" amounts: a single non-zero leading decimal digit followed only by
// zeroes (1, 2, ..., 9, 10, 20, ..., 900, 1000, ...). Every output amount a
// transaction produces must be pretty so that it is minable by the ring
// signature scheme.
func IsPrettyAmount(amount Amount) bool {
	if amount == 0 {
		return false
	}
	for amount%10 == 0 {
		amount /= 10
	}
	return amount >= 1 && amount <= 9
}

// SplitAmountIntoDenominations decomposes amount into the canonical
// CryptoNote per-digit denominations: one pretty amount per non-zero decimal
// digit of amount, largest denomination first. The sum of the result always
// equals amount, and every element satisfies IsPrettyAmount (amount == 0
// yields an empty, valid result).
func SplitAmountIntoDenominations(amount Amount) []Amount {
	if amount == 0 {
		return nil
	}
	var denominations []Amount
	place := Amount(1)
	for amount > 0 {
		digit := amount % 10
		if digit != 0 {
			denominations = append(denominations, digit*place)
		}
		amount /= 10
		place *= 10
	}
	for i, j := 0, len(denominations)-1; i < j; i, j = i+1, j-1 {
		denominations[i], denominations[j] = denominations[j], denominations[i]
	}
	return denominations
}
