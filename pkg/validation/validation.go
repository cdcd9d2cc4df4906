package validation

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// MinPublishYear is the earliest accepted publication year.
const MinPublishYear = 1000

// Now is the clock used for the publication year ceiling.
var Now = time.Now

// New returns a validator with catalog rules registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("publishyear", publishYear); err != nil {
		panic(fmt.Sprintf("register publishyear rule: %v", err))
	}
	if err := v.RegisterValidation("minbytes", minBytes); err != nil {
		panic(fmt.Sprintf("register minbytes rule: %v", err))
	}
	return v
}

// CurrentYear is the upper bound for publication years.
func CurrentYear() int {
	return Now().Year()
}

func publishYear(fl validator.FieldLevel) bool {
	year := fl.Field().Int()
	return year >= MinPublishYear && year <= int64(CurrentYear())
}

// minBytes compares the encoded byte length of a string, unlike min which counts runes.
func minBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) >= limit
}

// Messages flattens validator output into readable messages. Fields missing from
// the lookup fall back to "<field> failed <tag>".
func Messages(err error, lookup map[string]string) []string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		if err == nil {
			return nil
		}
		return []string{err.Error()}
	}
	messages := make([]string, 0, len(fieldErrs))
	seen := make(map[string]struct{}, len(fieldErrs))
	for _, fe := range fieldErrs {
		msg, ok := lookup[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
		}
		if _, dup := seen[msg]; dup {
			continue
		}
		seen[msg] = struct{}{}
		messages = append(messages, msg)
	}
	return messages
}
