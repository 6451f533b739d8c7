package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCheckoutRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
	Qty   int    `json:"qty" validate:"gte=0,lte=999"`
}

func decodeMap(t *testing.T, body map[string]interface{}) (testCheckoutRequest, error) {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(raw))
	var out testCheckoutRequest
	err := DecodeAndValidate(httptest.NewRecorder(), req, &out)
	return out, err
}

func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing required fields are rejected", prop.ForAll(
		func(includeName bool, includeEmail bool) bool {
			body := map[string]interface{}{}
			if includeName {
				body["name"] = "Ann"
			}
			if includeEmail {
				body["email"] = "ann@example.com"
			}

			_, err := decodeMap(t, body)
			if includeName && includeEmail {
				return err == nil
			}
			return err != nil
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProperty_QuantityRange(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("qty outside 0..999 is rejected", prop.ForAll(
		func(qty int) bool {
			_, err := decodeMap(t, map[string]interface{}{"name": "Ann", "email": "ann@example.com", "qty": qty})
			if qty >= 0 && qty <= 999 {
				return err == nil
			}
			return err != nil
		},
		gen.IntRange(-100, 1200),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestFormatValidationErrors_UsesJSONNames(t *testing.T) {
	_, err := decodeMap(t, map[string]interface{}{"name": "Ann", "email": "invalid"})
	require.Error(t, err)

	fieldErrs := FormatValidationErrors(err)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "email", fieldErrs[0].Field)
	assert.Equal(t, "Invalid email format", fieldErrs[0].Message)
}

func TestDecodeAndValidate_MalformedBodies(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      "{",
		"unknown field": `{"name":"Ann","email":"a@x.com","coupon":"FREE"}`,
		"wrong type":    `{"name":"Ann","email":"a@x.com","qty":"three"}`,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
			var out testCheckoutRequest
			err := DecodeAndValidate(httptest.NewRecorder(), req, &out)

			assert.True(t, errors.Is(err, ErrMalformedBody))
			assert.Empty(t, FormatValidationErrors(err))
		})
	}
}

func TestRespondWithDecodeError(t *testing.T) {
	_, err := decodeMap(t, map[string]interface{}{"email": "a@x.com"})
	w := httptest.NewRecorder()
	RespondWithDecodeError(w, err)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_errors")

	w = httptest.NewRecorder()
	RespondWithDecodeError(w, ErrMalformedBody)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "malformed request body")
}
