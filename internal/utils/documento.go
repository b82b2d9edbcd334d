package utils

import (
	"regexp"
	"strconv"
	"time"
)

var nonDigits = regexp.MustCompile(`\D`)

// CleanDocumento removes all non-numeric characters from a CPF or CNPJ.
func CleanDocumento(doc string) string {
	return nonDigits.ReplaceAllString(doc, "")
}

// FormatCNPJ formats a CNPJ as XX.XXX.XXX/XXXX-XX. Invalid lengths are
// returned unchanged.
func FormatCNPJ(cnpj string) string {
	cleaned := CleanDocumento(cnpj)
	if len(cleaned) != 14 {
		return cnpj
	}
	return cleaned[:2] + "." + cleaned[2:5] + "." + cleaned[5:8] + "/" + cleaned[8:12] + "-" + cleaned[12:14]
}

// FormatCPF formats a CPF as XXX.XXX.XXX-XX. Invalid lengths are returned
// unchanged.
func FormatCPF(cpf string) string {
	cleaned := CleanDocumento(cpf)
	if len(cleaned) != 11 {
		return cpf
	}
	return cleaned[:3] + "." + cleaned[3:6] + "." + cleaned[6:9] + "-" + cleaned[9:11]
}

// FormatBirthDate renders a birth date the way the state-court form wants
// it (DD/MM/AAAA).
func FormatBirthDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// IsValidCNPJ validates a CNPJ using the official check-digit algorithm.
func IsValidCNPJ(cnpj string) bool {
	cleaned := CleanDocumento(cnpj)
	if len(cleaned) != 14 || isAllSameDigit(cleaned) {
		return false
	}
	digits, ok := toDigits(cleaned)
	if !ok {
		return false
	}
	if !isValidCheckDigit(digits[:12], digits[12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}) {
		return false
	}
	return isValidCheckDigit(digits[:13], digits[13], []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
}

// IsValidCPF validates a CPF using the official check-digit algorithm.
func IsValidCPF(cpf string) bool {
	cleaned := CleanDocumento(cpf)
	if len(cleaned) != 11 || isAllSameDigit(cleaned) {
		return false
	}
	digits, ok := toDigits(cleaned)
	if !ok {
		return false
	}
	if !isValidCheckDigit(digits[:9], digits[9], []int{10, 9, 8, 7, 6, 5, 4, 3, 2}) {
		return false
	}
	return isValidCheckDigit(digits[:10], digits[10], []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2})
}

func toDigits(s string) ([]int, bool) {
	digits := make([]int, len(s))
	for i, char := range s {
		d, err := strconv.Atoi(string(char))
		if err != nil {
			return nil, false
		}
		digits[i] = d
	}
	return digits, true
}

func isAllSameDigit(s string) bool {
	if len(s) == 0 {
		return false
	}
	first := s[0]
	for i := 1; i < len(s); i++ {
		if s[i] != first {
			return false
		}
	}
	return true
}

func isValidCheckDigit(digits []int, checkDigit int, weights []int) bool {
	sum := 0
	for i, digit := range digits {
		sum += digit * weights[i]
	}
	remainder := sum % 11
	expected := 0
	if remainder >= 2 {
		expected = 11 - remainder
	}
	return expected == checkDigit
}
