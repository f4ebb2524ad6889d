// Package lead holds the lead-capture model: input normalization and the
// notification text sent to the operators' chat.
package lead

import (
	"errors"
	"strings"
)

// ErrMissingFields is returned when name or phone is blank.
var ErrMissingFields = errors.New("name and phone are required")

// Submission is one form post. It lives for a single request.
type Submission struct {
	Name    string
	Phone   string
	Message string
}

// New trims every field and checks the required ones. The returned
// submission carries the normalized phone.
func New(name, phone, message string) (Submission, error) {
	sub := Submission{
		Name:    strings.TrimSpace(name),
		Phone:   strings.TrimSpace(phone),
		Message: strings.TrimSpace(message),
	}
	if sub.Name == "" || sub.Phone == "" {
		return Submission{}, ErrMissingFields
	}
	sub.Phone = NormalizePhone(sub.Phone)
	return sub, nil
}

var phoneStripper = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizePhone drops spaces, hyphens and parentheses. Everything else,
// including a leading '+', is kept as-is.
func NormalizePhone(phone string) string {
	return phoneStripper.Replace(phone)
}
