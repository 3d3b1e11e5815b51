package said

import (
	"fmt"
	"time"
)

// IdentityNumber holds the fields derived from a valid South African ID
// number: YYMMDD SSSS C A Z, where the first six digits encode the birth
// date, C is citizenship, and Z is a Luhn check digit.
type IdentityNumber struct {
	Value     string
	BirthDate time.Time
	Citizen   bool
}

// Parse validates the checksum and embedded birth date of a 13-digit
// South African ID number.
func Parse(value string) (*IdentityNumber, error) {
	if len(value) != 13 {
		return nil, fmt.Errorf("id number must be 13 digits, got %d", len(value))
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("id number must contain only digits")
		}
	}

	if !luhnValid(value) {
		return nil, fmt.Errorf("id number checksum is invalid")
	}

	birthDate, err := parseBirthDate(value[:6])
	if err != nil {
		return nil, err
	}

	return &IdentityNumber{
		Value:     value,
		BirthDate: birthDate,
		Citizen:   value[10] == '0',
	}, nil
}

// AgeAt returns the full years between the holder's birth date and ref.
func (n *IdentityNumber) AgeAt(ref time.Time) int {
	age := ref.Year() - n.BirthDate.Year()
	if ref.Month() < n.BirthDate.Month() ||
		(ref.Month() == n.BirthDate.Month() && ref.Day() < n.BirthDate.Day()) {
		age--
	}
	return age
}

// parseBirthDate resolves the two-digit year: YY values in the future are
// taken as 19YY, everything else as 20YY.
func parseBirthDate(yymmdd string) (time.Time, error) {
	t, err := time.Parse("060102", yymmdd)
	if err != nil {
		return time.Time{}, fmt.Errorf("id number has invalid birth date: %w", err)
	}
	if t.After(time.Now()) {
		t = t.AddDate(-100, 0, 0)
	}
	return t, nil
}

// luhnValid checks the trailing Luhn digit over the full 13-digit string.
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
