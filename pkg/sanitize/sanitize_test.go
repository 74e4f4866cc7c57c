package sanitize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thermaworks/intake/pkg/contracts"
	"github.com/thermaworks/intake/pkg/sanitize"
)

func TestString_EscapesMarkupCharacters(t *testing.T) {
	assert.Equal(t,
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		sanitize.String("<script>alert(1)</script>"))

	assert.Equal(t, "&amp;", sanitize.String("&"))
	assert.Equal(t, "&quot;", sanitize.String(`"`))
	assert.Equal(t, "&#x27;", sanitize.String("'"))
}

func TestString_TrimsBeforeEscaping(t *testing.T) {
	assert.Equal(t, "stainless steel", sanitize.String("  stainless steel \n"))
	assert.Equal(t, "", sanitize.String("   "))
}

func TestString_PlainContentUntouched(t *testing.T) {
	assert.Equal(t, "shell-and-tube", sanitize.String("shell-and-tube"))
	assert.Equal(t, "100-500", sanitize.String("100-500"))
}

func TestSubmission_AllStringFieldsSanitized(t *testing.T) {
	sub := &contracts.Submission{
		Email:                  " a@b.co ",
		ExchangerType:          "<b>plate</b>",
		Power:                  "100",
		InletTemp:              "20",
		OutletTemp:             "80",
		FlowRate:               "5",
		Pressure:               "3",
		Material:               `copper "alloy"`,
		Application:            "O'Brien & Sons",
		AdditionalRequirements: "<svg onload=x>",
	}

	sanitize.Submission(sub)

	assert.Equal(t, "a@b.co", sub.Email)
	assert.Equal(t, "&lt;b&gt;plate&lt;/b&gt;", sub.ExchangerType)
	assert.Equal(t, "copper &quot;alloy&quot;", sub.Material)
	assert.Equal(t, "O&#x27;Brien &amp; Sons", sub.Application)
	assert.Equal(t, "&lt;svg onload=x&gt;", sub.AdditionalRequirements)
}
