package cardgen

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"

	"github.com/theplant/luhn"
)

const (
	// MinLength and MaxLength bound generated numbers; 18 digits always fit an int64.
	MinLength = 12
	MaxLength = 18

	DefaultBIN    = "605678"
	DefaultLength = 16
)

// GenerateNumber returns a Luhn-valid card number of totalLen digits starting
// with bin.
func GenerateNumber(bin string, totalLen int) (int64, error) {
	if err := ValidateBIN(bin); err != nil {
		return 0, err
	}
	if totalLen < MinLength || totalLen > MaxLength {
		return 0, fmt.Errorf("total length must be %d..%d", MinLength, MaxLength)
	}
	fill := totalLen - 1 - len(bin)
	if fill <= 0 {
		return 0, fmt.Errorf("bin too long: %s", bin)
	}
	digitsPart, err := randomDigits(fill)
	if err != nil {
		return 0, fmt.Errorf("rand: %w", err)
	}
	body, err := strconv.ParseInt(bin+digitsPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number body: %w", err)
	}
	return body*10 + int64(luhn.CalculateLuhn(int(body))), nil
}

// GenerateUniqueNumber retries GenerateNumber until exists reports the number
// as unused.
func GenerateUniqueNumber(
	bin string, totalLen int, maxRetries int,
	exists func(int64) (bool, error),
) (int64, error) {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	for i := 0; i <= maxRetries; i++ {
		n, err := GenerateNumber(bin, totalLen)
		if err != nil {
			return 0, err
		}
		if exists == nil {
			return n, nil
		}
		used, err := exists(n)
		if err != nil {
			return 0, fmt.Errorf("exists callback: %w", err)
		}
		if !used {
			return n, nil
		}
	}
	return 0, fmt.Errorf("failed to generate unique card number after %d retries", maxRetries)
}

// Valid reports whether n carries a correct Luhn check digit.
func Valid(n int64) bool {
	return n > 0 && luhn.Valid(int(n))
}

// randomDigits uses rejection sampling so every digit is equally likely.
func randomDigits(count int) (string, error) {
	if count <= 0 {
		return "", nil
	}
	const threshold = 250 // 256 - (256 % 10)
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 64)
	for sb.Len() < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			b := buf[i]
			if b < threshold {
				sb.WriteByte('0' + (b % 10))
			}
		}
	}
	return sb.String(), nil
}

func ValidateBIN(bin string) error {
	if bin == "" {
		return fmt.Errorf("bin is required")
	}
	if !IsDigits(bin) {
		return fmt.Errorf("bin must contain digits only")
	}
	if bin[0] == '0' {
		return fmt.Errorf("bin must not start with 0")
	}
	switch len(bin) {
	case 6, 8, 9:
		return nil
	default:
		return fmt.Errorf("bin must be 6, 8, or 9 digits")
	}
}

func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// MaskNumber keeps the BIN and the last four digits of long numbers and only
// the last four of short ones.
func MaskNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	l := len(s)
	if l <= 4 {
		return strings.Repeat("*", l)
	}
	if l < 10 {
		return strings.Repeat("*", l-4) + s[l-4:]
	}
	return s[:6] + strings.Repeat("*", l-10) + s[l-4:]
}
