package domain

// Zero overwrites a byte slice with zeros. Used for DEKs, KEKs and decrypted
// nsec values as soon as they are no longer needed.
func Zero(b []byte) {
	clear(b)
}

// ZeroAll zeroes every slice passed to it.
func ZeroAll(bs ...[]byte) {
	for _, b := range bs {
		clear(b)
	}
}
