package services

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// commonPasswords is a short list of the most reused passwords.
var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range strings.Fields(`
		password password1 password12 password123 passw0rd 12345678 123456789 1234567890
		qwerty123 qwertyuiop 1q2w3e4r 1qaz2wsx iloveyou sunshine princess football baseball
		welcome welcome1 abc12345 admin123 letmein1 monkey123 dragon123 trustno1 superman
		starwars whatever michael jennifer computer internet shadow123 master123 freedom1
		charlie1 batman123 zaq12wsx asdfghjk asdfasdf qwertyui 11111111 00000000 88888888
		87654321 changeme secret123 shipping truckload`) {
		commonPasswords[p] = struct{}{}
	}
}

// validatePassword returns every rule the password breaks.
func validatePassword(password string) []string {
	var problems []string

	lower := strings.ToLower(password)
	if len([]rune(password)) < minPasswordLength {
		problems = append(problems, fmt.Sprintf(
			"This password is too short. It must contain at least %d characters.", minPasswordLength))
	}
	if _, ok := commonPasswords[lower]; ok {
		problems = append(problems, "This password is too common.")
	}
	if isNumeric(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	return problems
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// prehash fits passwords of any length into the 72 bytes bcrypt reads.
func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(prehash(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(password)) == nil
}
