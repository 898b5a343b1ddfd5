// Package successor implements the cyclic nearest-successor search used to
// resolve ownership on a ring.
package successor

// Search finds the first of n elements, sorted ascending, that is greater
// than or equal to a target. cmp(i) must report how element i compares to
// the target: negative when it is smaller, zero when equal, and positive when
// greater.
//
// If every element is smaller than the target, Search wraps around and
// returns 0. ok is false only when n is 0.
//
// When several consecutive elements equal the target, the first of them is
// returned.
func Search(n int, cmp func(i int) int) (idx int, ok bool) {
	if n == 0 {
		return 0, false
	}

	left, right := 0, n-1
	for left <= right {
		mid := int(uint(left+right) >> 1)

		switch c := cmp(mid); {
		case c == 0:
			for mid > 0 && cmp(mid-1) == 0 {
				mid--
			}
			return mid, true
		case c < 0:
			left = mid + 1
		default:
			right = mid - 1
		}
	}

	if left >= n {
		// Target is past the largest element; wrap around.
		return 0, true
	}
	if right >= 0 && cmp(right) > 0 {
		return right, true
	}
	return left, true
}
