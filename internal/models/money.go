package models

import "fmt"

// Money is an amount in mils (1/1000 of a dinar). Storing integer mils keeps
// refund-conservation arithmetic exact; formatting to three decimal places
// happens only at the API boundary.
type Money int64

// String renders the amount as a 3-decimal-place value, e.g. 10500 -> "10.500".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%03d", sign, v/1000, v%1000)
}
