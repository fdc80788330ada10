package crypto

import "securechat/internal/util/memzero"

// Wipe zeroes the provided buffers.
func Wipe(bs ...[]byte) { memzero.ZeroAll(bs...) }
