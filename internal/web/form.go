// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Kudos Contributors

package web

import (
	"net/http"
	"net/url"

	"github.com/samber/oops"

	"github.com/kudos-app/kudos/internal/auth"
)

// ActionField is the form field naming the submitted form.
const ActionField = "_action"

// maxFormBytes bounds the size of a login or registration body.
const maxFormBytes = 64 << 10

// Submission is a decoded login page POST. Exactly one of Login and
// Register is set.
type Submission struct {
	Action   string
	Login    *auth.LoginForm
	Register *auth.RegisterForm
}

// ParseAction decodes the form-encoded body of r. A body that cannot be
// parsed, an unknown action, or a missing or repeated required field
// yields a 400 "Invalid Form Data" result instead of a Submission.
func ParseAction(w http.ResponseWriter, r *http.Request) (*Submission, *auth.Result) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return nil, invalidForm("", oops.Code("FORM_PARSE_FAILED").Wrap(err))
	}
	form := r.PostForm

	action, ok := single(form, ActionField)
	if !ok {
		return nil, invalidForm("", oops.Code("FORM_UNKNOWN_ACTION").Errorf("missing form action"))
	}

	switch action {
	case auth.ActionLogin:
		values, ok := required(form, auth.FieldEmail, auth.FieldPassword)
		if !ok {
			return nil, invalidForm(action, oops.Code("FORM_MALFORMED").With("action", action).Errorf("missing or repeated field"))
		}
		return &Submission{Action: action, Login: &auth.LoginForm{
			Email:    values[0],
			Password: values[1],
		}}, nil

	case auth.ActionRegister:
		values, ok := required(form, auth.FieldEmail, auth.FieldPassword, auth.FieldFirstName, auth.FieldLastName)
		if !ok {
			return nil, invalidForm(action, oops.Code("FORM_MALFORMED").With("action", action).Errorf("missing or repeated field"))
		}
		return &Submission{Action: action, Register: &auth.RegisterForm{
			Email:     values[0],
			Password:  values[1],
			FirstName: values[2],
			LastName:  values[3],
		}}, nil

	default:
		return nil, invalidForm("", oops.Code("FORM_UNKNOWN_ACTION").With("action", action).Errorf("unknown form action"))
	}
}

// single returns the only value of key. Absent or repeated keys fail.
func single(form url.Values, key string) (string, bool) {
	values, ok := form[key]
	if !ok || len(values) != 1 {
		return "", false
	}
	return values[0], true
}

func required(form url.Values, keys ...string) ([]string, bool) {
	out := make([]string, len(keys))
	for i, key := range keys {
		v, ok := single(form, key)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func invalidForm(action string, err error) *auth.Result {
	result := auth.Failure(http.StatusBadRequest, &auth.ResponseBody{
		Error: auth.MsgInvalidFormData,
		Form:  action,
	}, err)
	return &result
}
