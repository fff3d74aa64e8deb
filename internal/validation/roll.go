// Package validation содержит проверки форматов справочных данных столовой.
package validation

import "regexp"

var (
	rollNumberRe  = regexp.MustCompile(`^[0-9]{2}[A-Z]{2}[0-9]{5}$`)
	phoneNumberRe = regexp.MustCompile(`^[0-9]{10}$`)
)

// IsValidRollNumber проверяет формат номера зачётной книжки, например 21CS30001.
func IsValidRollNumber(roll string) bool {
	return rollNumberRe.MatchString(roll)
}

// IsValidPhoneNumber проверяет, что телефон состоит из десяти цифр.
func IsValidPhoneNumber(phone string) bool {
	return phoneNumberRe.MatchString(phone)
}
