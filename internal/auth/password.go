// Package auth owns the two security primitives of the application:
// password hashing (bcrypt) and the in-memory login-session registry.
package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword derives a bcrypt digest from a plaintext password.
//
// bcrypt embeds a random salt in every digest, so hashing the same
// password twice produces two different strings — both of which
// CheckPassword accepts. cost is the work factor from config
// (bcrypt.MinCost..bcrypt.MaxCost; 12 in the default config).
func HashPassword(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword reports whether password matches a digest previously
// produced by HashPassword. The cost and salt are read back out of the
// digest itself, so digests hashed under an older cost keep verifying.
func CheckPassword(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
