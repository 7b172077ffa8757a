package cryptox

import "errors"

// ErrCiphertextTooShort reports a sealed chunk smaller than a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")
