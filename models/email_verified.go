package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type VerificationState string

const (
	VerificationNever    VerificationState = "NEVER"
	VerificationDeclined VerificationState = "DECLINED"
	VerificationVerified VerificationState = "VERIFIED"
)

// EmailVerification keeps the three verification states distinct in storage:
// never attempted, explicitly declined, and verified at a point in time.
type EmailVerification struct {
	State VerificationState `json:"state" gorm:"column:state;not null;default:NEVER"`
	At    *time.Time        `json:"at" gorm:"column:at"`
}

func NeverVerified() EmailVerification {
	return EmailVerification{State: VerificationNever}
}

func DeclinedVerification() EmailVerification {
	return EmailVerification{State: VerificationDeclined}
}

func VerifiedAt(t time.Time) EmailVerification {
	t = t.UTC()
	return EmailVerification{State: VerificationVerified, At: &t}
}

func (v EmailVerification) IsVerified() bool {
	return v.State == VerificationVerified && v.At != nil
}

// Timestamp collapses the state to Date-or-null. DECLINED and NEVER both
// return nil; this is the lossy boundary of the adapter.
func (v EmailVerification) Timestamp() *time.Time {
	if !v.IsVerified() {
		return nil
	}
	t := *v.At
	return &t
}

// ParseEmailVerified normalizes a provider-supplied value:
// false is DECLINED, a date or any other truthy value is VERIFIED, and
// nil or other falsy values are NEVER. Unparseable strings fail.
func ParseEmailVerified(raw any, now time.Time) (EmailVerification, error) {
	switch v := raw.(type) {
	case nil:
		return NeverVerified(), nil
	case bool:
		if !v {
			return DeclinedVerification(), nil
		}
		return VerifiedAt(now), nil
	case time.Time:
		if v.IsZero() {
			return NeverVerified(), nil
		}
		return VerifiedAt(v), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return NeverVerified(), nil
		}
		return VerifiedAt(*v), nil
	case EmailVerification:
		return v, nil
	case int:
		return fromMillis(int64(v)), nil
	case int64:
		return fromMillis(v), nil
	case float64:
		return fromMillis(int64(v)), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return EmailVerification{}, ErrorValidation{Field: "emailVerified", Message: "invalid timestamp"}
		}
		return fromMillis(n), nil
	case string:
		return parseVerifiedString(v)
	}
	return EmailVerification{}, ErrorValidation{Field: "emailVerified", Message: "unsupported value"}
}

// fromMillis reads numbers as Unix milliseconds; zero is falsy.
func fromMillis(ms int64) EmailVerification {
	if ms == 0 {
		return NeverVerified()
	}
	return VerifiedAt(time.UnixMilli(ms))
}

func parseVerifiedString(s string) (EmailVerification, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NeverVerified(), nil
	}
	if s == "false" {
		return DeclinedVerification(), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromMillis(ms), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return VerifiedAt(t), nil
		}
	}
	return EmailVerification{}, ErrorValidation{Field: "emailVerified", Message: "invalid timestamp"}
}
