package collection

// naturalLess compares two strings treating runs of ASCII digits as numbers,
// so "img2" sorts before "img10". Equal numeric values with different leading
// zeros order the shorter run first ("img2" < "img02"). Non-digit bytes are
// compared case-insensitively with a case-sensitive tie break, keeping the
// order total.
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			numStartA := i
			for i < len(a) && a[i] == '0' {
				i++
			}
			valStartA := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}

			numStartB := j
			for j < len(b) && b[j] == '0' {
				j++
			}
			valStartB := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}

			valA, valB := a[valStartA:i], b[valStartB:j]
			if len(valA) != len(valB) {
				return len(valA) < len(valB)
			}
			if valA != valB {
				return valA < valB
			}
			if lenA, lenB := i-numStartA, j-numStartB; lenA != lenB {
				return lenA < lenB
			}
			continue
		}

		ca, cb := lower(a[i]), lower(b[j])
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}

	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}
	return a < b
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
