package uart

import "math/bits"

// parityOK validates a received parity bit against the accumulated data
// value. ParityZero and ParityOne check the bit alone; ParityOdd and
// ParityEven check the count of set bits in the data including the parity
// bit itself. Must not be called with ParityNone.
func parityOK(parity Parity, parityBit, data int) bool {
	switch parity {
	case ParityZero:
		return parityBit == 0
	case ParityOne:
		return parityBit == 1
	}

	ones := bits.OnesCount(uint(data)) + parityBit
	if parity == ParityOdd {
		return ones%2 == 1
	}
	return ones%2 == 0
}

// expectedParity returns the parity bit value that would validate for the
// given data value.
func expectedParity(parity Parity, data int) int {
	switch parity {
	case ParityZero:
		return 0
	case ParityOne:
		return 1
	}

	ones := bits.OnesCount(uint(data))
	if parity == ParityOdd {
		return 1 - ones%2
	}
	return ones % 2
}
