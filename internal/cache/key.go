package cache

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Key builds the entry key for op. Every part is length-prefixed before
// hashing so ("ab","c") and ("a","bc") never collide.
func Key(op, userID string, generation uint64, args ...string) string {
	d := xxhash.New()
	writePart(d, userID)
	writePart(d, strconv.FormatUint(generation, 10))
	for _, arg := range args {
		writePart(d, arg)
	}
	return op + ":" + strconv.FormatUint(d.Sum64(), 16)
}

func writePart(d *xxhash.Digest, s string) {
	_, _ = d.WriteString(strconv.Itoa(len(s)))
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(s)
}

func hashString(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}
