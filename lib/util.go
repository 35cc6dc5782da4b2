package lib

import "bytes"
import "fmt"
import "strings"

// GetStacktrace return stack-trace in human readable format.
func GetStacktrace(skip int, stack []byte) string {
	var buf bytes.Buffer
	lines := strings.Split(string(stack), "\n")
	for _, call := range lines[skip*2:] {
		buf.WriteString(fmt.Sprintf("%s\n", call))
	}
	return buf.String()
}

// AbsInt64 absolute value of int64 number. Except for -2^63, where
// returned value will be same as input.
func AbsInt64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// IsPowerOfTwo reports whether n is a power of two. Zero is not.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && (n&(n-1)) == 0
}

// RoundUpToMultipleOf rounds n up to the nearest multiple of factor.
// factor must be a power of two.
func RoundUpToMultipleOf(factor, n uintptr) uintptr {
	return (n + factor - 1) &^ (factor - 1)
}

// DivideRoundingUp returns the quotient and remainder of dividing total
// by unit, where quotient is rounded up: quotient*unit - total is the
// number of leftover bytes a single more unit would absorb.
func DivideRoundingUp(total, unit uintptr) (quotient, remainder uintptr) {
	quotient = (total + unit - 1) / unit
	remainder = quotient*unit - total
	return
}
