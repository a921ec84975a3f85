package binder

import (
	"net/url"
	"strings"

	"github.com/chaskitbooks/chaskit/pkg/models"
	"github.com/go-playground/validator/v10"
)

// whichWitchValidator allows the empty string so that it can be combined with
// omitempty on optional fields. Use required alongside it otherwise.
func whichWitchValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "" || models.IsWhichWitch(value)
}

// coverValidator accepts the empty string (clear the cover), an http(s) URL, or
// a base64 encoded data URI.
func coverValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	if strings.HasPrefix(value, "data:") {
		return strings.Contains(value, ";base64,")
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
