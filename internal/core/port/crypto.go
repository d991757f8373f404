package port

// PasswordHasher hashes and verifies secrets using the configured algorithm.
// Hash returns the derived key and the fresh salt as opaque encoded strings.
type PasswordHasher interface {
	Hash(password string) (hash string, salt string, err error)
	Verify(password, hash, salt string) (bool, error)
}
