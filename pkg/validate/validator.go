// Package validate enforces the per-field syntactic and range rules on a
// decoded submission. All violations are collected so the caller receives
// the complete error list in one response.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/thermaworks/intake/pkg/contracts"
)

// Stable machine-readable violation codes, one per rule.
const (
	CodeEmailInvalid      = "email_invalid"
	CodePowerInvalid      = "power_invalid"
	CodeInletTempInvalid  = "inlet_temp_invalid"
	CodeInletTempRange    = "inlet_temp_range"
	CodeOutletTempInvalid = "outlet_temp_invalid"
	CodeOutletTempRange   = "outlet_temp_range"
	CodeFlowRateInvalid   = "flow_rate_invalid"
	CodePressureInvalid   = "pressure_invalid"
	CodeTypeRequired      = "type_required"
	CodeMaterialRequired  = "material_required"
)

// Temperature bounds in degrees Celsius, inclusive.
const (
	TempMin = -50
	TempMax = 500
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

	// numericOrRange accepts a decimal number or a NUMBER-NUMBER range,
	// e.g. "100", "2.5", "100-500".
	numericOrRange = regexp.MustCompile(`^(\d+(\.\d+)?)(-\d+(\.\d+)?)?$`)
)

// Validator applies the field rules. It is stateless and safe for
// concurrent use.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate returns the complete list of violations; an empty list means
// the submission is valid. Rules operate on raw, pre-sanitization content.
func (v *Validator) Validate(sub *contracts.Submission) []contracts.FieldError {
	var errs []contracts.FieldError

	if email := strings.TrimSpace(sub.Email); email == "" || !emailPattern.MatchString(email) {
		errs = append(errs, contracts.FieldError{
			Field: "email", Code: CodeEmailInvalid,
			Message: "email address is missing or malformed",
		})
	}

	errs = appendRangeRule(errs, sub.Power, "power", CodePowerInvalid, "power must be a number or numeric range")
	errs = appendTempRule(errs, sub.InletTemp, "inletTemp", CodeInletTempInvalid, CodeInletTempRange)
	errs = appendTempRule(errs, sub.OutletTemp, "outletTemp", CodeOutletTempInvalid, CodeOutletTempRange)
	errs = appendRangeRule(errs, sub.FlowRate, "flowRate", CodeFlowRateInvalid, "flow rate must be a number or numeric range")
	errs = appendRangeRule(errs, sub.Pressure, "pressure", CodePressureInvalid, "pressure must be a number or numeric range")

	if strings.TrimSpace(sub.ExchangerType) == "" {
		errs = append(errs, contracts.FieldError{
			Field: "heatExchangerType", Code: CodeTypeRequired,
			Message: "heat exchanger type is required",
		})
	}
	if strings.TrimSpace(sub.Material) == "" {
		errs = append(errs, contracts.FieldError{
			Field: "material", Code: CodeMaterialRequired,
			Message: "material is required",
		})
	}

	return errs
}

func appendRangeRule(errs []contracts.FieldError, value, field, code, message string) []contracts.FieldError {
	v := strings.TrimSpace(value)
	if v == "" || !numericOrRange.MatchString(v) {
		errs = append(errs, contracts.FieldError{Field: field, Code: code, Message: message})
	}
	return errs
}

// appendTempRule distinguishes non-numeric input from a numeric value
// outside [-50, 500]; each violation has its own code.
func appendTempRule(errs []contracts.FieldError, value, field, invalidCode, rangeCode string) []contracts.FieldError {
	temp, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return append(errs, contracts.FieldError{
			Field: field, Code: invalidCode,
			Message: fmt.Sprintf("%s is not a number", field),
		})
	}
	if temp < TempMin || temp > TempMax {
		return append(errs, contracts.FieldError{
			Field: field, Code: rangeCode,
			Message: fmt.Sprintf("%s must be between %d and %d", field, TempMin, TempMax),
		})
	}
	return errs
}
