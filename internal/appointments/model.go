package appointments

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const maxFieldLength = 190

var (
	// ErrInvalidToken indicates that a token is not a positive integer.
	ErrInvalidToken = errors.New("appointments: invalid token")
	// ErrValidationFailed indicates that a submitted form is missing a required field.
	ErrValidationFailed = errors.New("appointments: validation failed")
	// ErrWriteRejected indicates that the storage engine refused a put or delete.
	ErrWriteRejected = errors.New("appointments: write rejected")
	// ErrAppointmentNotFound indicates that no stored record carries the token.
	ErrAppointmentNotFound = errors.New("appointments: appointment not found")
)

// Token is the unique sequential identifier of an appointment.
type Token int64

// NewToken validates the value and returns a Token.
func NewToken(value int64) (Token, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidToken, value)
	}
	return Token(value), nil
}

// Int64 exposes the raw token value.
func (token Token) Int64() int64 {
	return int64(token)
}

// Appointment is the persisted appointment record.
type Appointment struct {
	Token            Token  `gorm:"column:token;primaryKey;autoIncrement:false"`
	Name             string `gorm:"column:name;size:190;not null"`
	Phone            string `gorm:"column:phone;size:190;not null"`
	Date             string `gorm:"column:date;size:32;not null"`
	Time             string `gorm:"column:time;size:32;not null"`
	Approved         bool   `gorm:"column:approved;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Appointment) TableName() string {
	return "appointments"
}

// SameContent reports whether both records carry identical user-visible fields.
func (a Appointment) SameContent(other Appointment) bool {
	return a.Token == other.Token &&
		a.Name == other.Name &&
		a.Phone == other.Phone &&
		a.Date == other.Date &&
		a.Time == other.Time &&
		a.Approved == other.Approved
}

// FormValues carries the four fields read from the appointment form.
type FormValues struct {
	Name  string
	Phone string
	Date  string
	Time  string
}

// Normalize trims every field and NFC-normalizes the name.
func (values FormValues) Normalize() FormValues {
	return FormValues{
		Name:  norm.NFC.String(strings.TrimSpace(values.Name)),
		Phone: strings.TrimSpace(values.Phone),
		Date:  strings.TrimSpace(values.Date),
		Time:  strings.TrimSpace(values.Time),
	}
}

// Validate checks that all four fields are present.
func (values FormValues) Validate() error {
	missing := make([]string, 0, 4)
	if values.Name == "" {
		missing = append(missing, "name")
	}
	if values.Phone == "" {
		missing = append(missing, "phone")
	}
	if values.Date == "" {
		missing = append(missing, "date")
	}
	if values.Time == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidationFailed, strings.Join(missing, ", "))
	}
	for field, value := range map[string]string{"name": values.Name, "phone": values.Phone, "date": values.Date, "time": values.Time} {
		if len(value) > maxFieldLength {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrValidationFailed, field, maxFieldLength)
		}
	}
	return nil
}

// NewAppointment builds an unapproved appointment from validated form values.
func NewAppointment(token Token, values FormValues, createdAtSeconds int64) (Appointment, error) {
	if token <= 0 {
		return Appointment{}, fmt.Errorf("%w: %d", ErrInvalidToken, token)
	}
	normalized := values.Normalize()
	if err := normalized.Validate(); err != nil {
		return Appointment{}, err
	}
	return Appointment{
		Token:            token,
		Name:             normalized.Name,
		Phone:            normalized.Phone,
		Date:             normalized.Date,
		Time:             normalized.Time,
		Approved:         false,
		CreatedAtSeconds: createdAtSeconds,
	}, nil
}
