package ledger

import (
	"errors"
	"reflect"
	"strings"

	"customerIntake/internal/apperr"

	"github.com/go-playground/validator/v10"
)

// submission is the validated shape of a SubmitRequest. Field order is the
// order errors are reported in.
type submission struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required,number,len=10"`
	Aadhaar  string `json:"aadhaar_number" validate:"required,number,len=12"`
	Document []byte `json:"document" validate:"required,min=1"`
	Email    string `json:"email" validate:"omitempty,contains=@"`
}

// fieldKinds maps a failing field to the error kind reported for a value
// that is present but malformed.
var fieldKinds = map[string]apperr.Kind{
	"phone":          apperr.InvalidPhone,
	"aadhaar_number": apperr.InvalidAadhaar,
	"email":          apperr.InvalidEmail,
	"document":       apperr.MissingField,
}

var fieldMessages = map[string]string{
	"phone":          "phone must be exactly 10 digits",
	"aadhaar_number": "aadhaar number must be exactly 12 digits",
	"email":          "email address is not valid",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check validates s. Missing fields are reported together as MissingField
// before any format error; otherwise the first malformed field wins.
func check(v *validator.Validate, s *submission) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.Internal, err, "validate submission")
	}
	var missing []string
	for _, fe := range verrs {
		if fe.Tag() == "required" || fe.Field() == "document" {
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		return apperr.New(apperr.MissingField, "missing required fields: %s", strings.Join(missing, ", "))
	}
	fe := verrs[0]
	kind, ok := fieldKinds[fe.Field()]
	if !ok {
		kind = apperr.InvalidInput
	}
	msg, ok := fieldMessages[fe.Field()]
	if !ok {
		msg = fe.Field() + " is not valid"
	}
	return apperr.New(kind, "%s", msg)
}
