package account

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const specialChars = "!@#?"

func HashPassword(pw string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
}

func CheckPassword(hash []byte, pw string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(pw)) == nil
}

// StrongPassword: at least 8 characters with an upper and lower case letter,
// a digit and one of !@#?.
func StrongPassword(pw string) bool {
	if utf8.RuneCountInString(pw) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}
	return upper && lower && digit && special
}
