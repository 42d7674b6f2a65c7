// Package validation содержит проверки входных данных сервиса шопмарт.
package validation

// ReferralCodeLength — длина реферального кода дистрибьютора.
const ReferralCodeLength = 12

// IsValidReferralCode проверяет формат реферального кода:
// ровно 12 символов, только цифры и заглавные латинские буквы.
func IsValidReferralCode(code string) bool {
	if len(code) != ReferralCodeLength {
		return false
	}

	for _, c := range code {
		isDigit := c >= '0' && c <= '9'
		isUpper := c >= 'A' && c <= 'Z'
		if !isDigit && !isUpper {
			return false
		}
	}

	return true
}
