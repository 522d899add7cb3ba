package ot

// SearchRange computes the binary-search header fields used by several
// OpenType and AAT structures. Given the number of units and the byte size
// of one unit, it returns searchRange, entrySelector and rangeShift as
// defined in the OpenType specification's table directory description:
// searchRange is the largest power of two ≤ numUnits, times unitSize.
func SearchRange(numUnits int, unitSize int) (searchRange, entrySelector, rangeShift int) {
	if numUnits == 0 {
		return 0, 0, 0
	}
	exponent := 0
	pow2 := 1
	for pow2*2 <= numUnits {
		pow2 *= 2
		exponent++
	}
	searchRange = pow2 * unitSize
	entrySelector = exponent
	rangeShift = numUnits*unitSize - searchRange
	return searchRange, entrySelector, rangeShift
}
