package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thermaworks/intake/pkg/contracts"
	"github.com/thermaworks/intake/pkg/validate"
)

func validSubmission() *contracts.Submission {
	return &contracts.Submission{
		Email:         "engineer@example.com",
		ExchangerType: "shell-and-tube",
		Power:         "100-500",
		InletTemp:     "20",
		OutletTemp:    "80",
		FlowRate:      "12.5",
		Pressure:      "6",
		Material:      "stainless steel",
	}
}

func codes(errs []contracts.FieldError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidate_ValidSubmissionHasNoErrors(t *testing.T) {
	v := validate.New()
	assert.Empty(t, v.Validate(validSubmission()))
}

func TestValidate_EmailRules(t *testing.T) {
	v := validate.New()
	for _, email := range []string{"", "   ", "plainaddress", "no@tld", "@missing.local"} {
		sub := validSubmission()
		sub.Email = email
		errs := v.Validate(sub)
		require.Len(t, errs, 1, "email %q", email)
		assert.Equal(t, validate.CodeEmailInvalid, errs[0].Code)
	}
}

func TestValidate_NumericOrRangePattern(t *testing.T) {
	v := validate.New()

	for _, power := range []string{"100", "2.5", "100-500", "0.5-1.5"} {
		sub := validSubmission()
		sub.Power = power
		assert.Empty(t, v.Validate(sub), "power %q", power)
	}

	for _, power := range []string{"", "abc", "100-", "-100", "100 - 500", "1..5"} {
		sub := validSubmission()
		sub.Power = power
		errs := v.Validate(sub)
		require.Len(t, errs, 1, "power %q", power)
		assert.Equal(t, validate.CodePowerInvalid, errs[0].Code)
	}
}

func TestValidate_TemperatureNonNumericDistinctFromOutOfRange(t *testing.T) {
	v := validate.New()

	sub := validSubmission()
	sub.InletTemp = "abc"
	errs := v.Validate(sub)
	require.Len(t, errs, 1)
	assert.Equal(t, validate.CodeInletTempInvalid, errs[0].Code)

	sub = validSubmission()
	sub.InletTemp = "600"
	errs = v.Validate(sub)
	require.Len(t, errs, 1)
	assert.Equal(t, validate.CodeInletTempRange, errs[0].Code)
}

func TestValidate_TemperatureBoundsInclusive(t *testing.T) {
	v := validate.New()

	sub := validSubmission()
	sub.InletTemp = "-50"
	sub.OutletTemp = "500"
	assert.Empty(t, v.Validate(sub))

	sub.InletTemp = "-50.1"
	sub.OutletTemp = "500.1"
	got := codes(v.Validate(sub))
	assert.ElementsMatch(t, []string{validate.CodeInletTempRange, validate.CodeOutletTempRange}, got)
}

func TestValidate_RequiredCategoricalFields(t *testing.T) {
	v := validate.New()

	sub := validSubmission()
	sub.ExchangerType = "   "
	sub.Material = ""
	got := codes(v.Validate(sub))
	assert.ElementsMatch(t, []string{validate.CodeTypeRequired, validate.CodeMaterialRequired}, got)
}

func TestValidate_AllViolationsCollected(t *testing.T) {
	v := validate.New()

	sub := &contracts.Submission{
		Email:      "bad",
		Power:      "watts",
		InletTemp:  "cold",
		OutletTemp: "9000",
		FlowRate:   "",
		Pressure:   "high",
	}
	got := codes(v.Validate(sub))
	assert.ElementsMatch(t, []string{
		validate.CodeEmailInvalid,
		validate.CodePowerInvalid,
		validate.CodeInletTempInvalid,
		validate.CodeOutletTempRange,
		validate.CodeFlowRateInvalid,
		validate.CodePressureInvalid,
		validate.CodeTypeRequired,
		validate.CodeMaterialRequired,
	}, got)
}
