// Package codec reverses the transport encoding of the submitted payload:
// base64 transcoding around a JSON document. This is an encoding, not
// encryption; it provides no confidentiality and the pipeline treats it
// purely as a transport format.
package codec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/thermaworks/intake/pkg/contracts"
)

var (
	// ErrTranscoding indicates the blob is not valid base64.
	ErrTranscoding = errors.New("payload transcoding invalid")
	// ErrSyntax indicates the decoded bytes are not a JSON object.
	ErrSyntax = errors.New("payload syntax invalid")
	// ErrMissingField indicates a required payload key is absent.
	ErrMissingField = errors.New("payload field missing")
	// ErrFieldType indicates a payload value is neither string nor number.
	ErrFieldType = errors.New("payload field type invalid")
)

// requiredKeys must be present in every decoded payload. Absence is a
// decode error, not a validation error: the pipeline never operates on a
// partially populated submission.
var requiredKeys = []string{
	"email",
	"heatExchangerType",
	"power",
	"inletTemp",
	"outletTemp",
	"flowRate",
	"pressure",
	"material",
}

// Decode reverses the transport encoding. It returns the typed submission
// together with the raw decoded map; the raw map feeds signature
// canonicalization so the verifier hashes exactly what the client signed,
// including keys the typed struct does not model.
func Decode(blob string) (*contracts.Submission, map[string]interface{}, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrTranscoding, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	for _, key := range requiredKeys {
		if _, ok := payload[key]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	}

	sub := &contracts.Submission{}
	fields := map[string]*string{
		"email":                  &sub.Email,
		"heatExchangerType":      &sub.ExchangerType,
		"power":                  &sub.Power,
		"inletTemp":              &sub.InletTemp,
		"outletTemp":             &sub.OutletTemp,
		"flowRate":               &sub.FlowRate,
		"pressure":               &sub.Pressure,
		"material":               &sub.Material,
		"application":            &sub.Application,
		"additionalRequirements": &sub.AdditionalRequirements,
	}
	for key, dst := range fields {
		value, ok := payload[key]
		if !ok {
			continue // optional key
		}
		text, err := asText(value)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrFieldType, key)
		}
		*dst = text
	}

	return sub, payload, nil
}

// Encode is the inverse transform, used by clients and tests.
func Encode(payload interface{}) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func asText(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}
