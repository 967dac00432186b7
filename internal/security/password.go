package security

import "golang.org/x/crypto/bcrypt"

// Accounts onboarded through Google never get a usable password hash; this
// sentinel is stored instead and fails every bcrypt comparison.
const GooglePlaceholder = "google-auth"

// HashPassword hashes a plain text password with bcrypt.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// helper that compares a bcrypt hash with a plaintext password.

func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
