package service

import (
	"github.com/shopspring/decimal"
)

// GSM 03.38 segmentation: one SMS carries 160 characters; once a message
// spills over, every segment pays a 7-byte concatenation header and
// carries 153 characters.
const (
	singleSegmentLimit = 160
	multiSegmentSize   = 153
)

// UnitsForMessage returns the number of billable SMS units for a message.
// Length is counted in runes so multibyte text is not overcharged.
func UnitsForMessage(message string) int {
	length := len([]rune(message))
	if length <= singleSegmentLimit {
		return 1
	}
	units := length / multiSegmentSize
	if length%multiSegmentSize != 0 {
		units++
	}
	return units
}

// CostForBatch prices a batch: units * unitPrice * recipient count.
func CostForBatch(message string, recipients int, unitPrice decimal.Decimal) (int, decimal.Decimal) {
	units := UnitsForMessage(message)
	total := unitPrice.Mul(decimal.NewFromInt(int64(units))).Mul(decimal.NewFromInt(int64(recipients)))
	return units, total
}
