package jwt

import "golang.org/x/crypto/bcrypt"

// HashIssuerKey produces the bcrypt hash stored in TOKEN_ISSUER_KEY_HASH.
func HashIssuerKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), 10)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func ValidateIssuerKey(hashedKey, key string) bool {
	if hashedKey == "" || key == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hashedKey), []byte(key))
	return err == nil
}
