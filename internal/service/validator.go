package service

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"truckslot/internal/domain"
	"truckslot/internal/models"

	"github.com/go-playground/validator/v10"
)

const dateRule = "required,datetime=" + models.DateLayout

// BookingValidator checks request shape only: presence of required
// fields and the date format. No business rules live here.
type BookingValidator struct {
	validate *validator.Validate
}

func NewBookingValidator() *BookingValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &BookingValidator{validate: v}
}

// ValidateCandidate expects an already normalized candidate.
func (v *BookingValidator) ValidateCandidate(c models.Candidate) error {
	err := v.validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var missing, malformed []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			malformed = append(malformed, fe.Field())
		}
	}

	if len(missing) > 0 {
		return &domain.ValidationError{Fields: missing, Reason: "missing required fields"}
	}
	return &domain.ValidationError{Fields: malformed, Reason: "invalid date format; expected YYYY-MM-DD"}
}

// ValidateDate checks a single query date under the given field name.
func (v *BookingValidator) ValidateDate(field, date string) error {
	err := v.validate.Var(date, dateRule)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
		return &domain.ValidationError{Fields: []string{field}, Reason: "date required"}
	}
	return &domain.ValidationError{Fields: []string{field}, Reason: "invalid date format; expected YYYY-MM-DD"}
}

// ValidateRange checks an inclusive date range used for listings and exports.
func (v *BookingValidator) ValidateRange(from, to string) error {
	if err := v.ValidateDate("from", from); err != nil {
		return err
	}
	if err := v.ValidateDate("to", to); err != nil {
		return err
	}

	start, _ := time.Parse(models.DateLayout, from)
	end, _ := time.Parse(models.DateLayout, to)
	if end.Before(start) {
		return &domain.ValidationError{Fields: []string{"from", "to"}, Reason: "from must not be after to"}
	}
	if end.Sub(start) > models.MaxExportRangeDays*24*time.Hour {
		return &domain.ValidationError{Fields: []string{"from", "to"}, Reason: "date range too long"}
	}
	return nil
}
