package wwvb

// Extract reads bits[start..end] as a binary number with the least
// significant bit at end. Indices past the end of bits read as zero so a
// truncated frame still decodes what it has.
func Extract(bits []uint8, start, end int) int {
	value := 0
	weight := 1
	for i := end; i >= start; i-- {
		if i >= 0 && i < len(bits) && bits[i] != 0 {
			value += weight
		}
		weight <<= 1
	}
	return value
}

// Digit extracts the value covered by r
func Digit(bits []uint8, r Range) int {
	return Extract(bits, r.Start, r.End)
}

// bit reports a single bit, false when absent
func bit(bits []uint8, i int) bool {
	return i >= 0 && i < len(bits) && bits[i] != 0
}

// put writes value into bits[r] using the same weighting as Extract
func put(bits []uint8, r Range, value int) {
	for i := r.End; i >= r.Start; i-- {
		bits[i] = uint8(value & 1)
		value >>= 1
	}
}
