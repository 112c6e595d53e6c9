package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/keyauth/internal/common"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// decodeJSON fills dst from a JSON body. Requests without a JSON body are left
// alone so that form and query values can still supply the fields.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 || render.GetRequestContentType(r) != render.ContentTypeJSON {
		return nil
	}
	if err := render.DecodeJSON(r.Body, dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed JSON body", common.ErrorValidation)
	}
	return nil
}

// fallbackString sets *dst from the query string or a form body when the JSON
// body left it empty.
func fallbackString(r *http.Request, dst *string, name string) {
	if *dst == "" {
		*dst = strings.TrimSpace(r.FormValue(name))
	}
}

func fallbackInt(r *http.Request, dst *int, name string) error {
	if *dst != 0 {
		return nil
	}
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: %s must be an integer", common.ErrorValidation, name)
	}
	*dst = n
	return nil
}

func fallbackOptionalInt(r *http.Request, dst **int, name string) error {
	if *dst != nil {
		return nil
	}
	var n int
	if err := fallbackInt(r, &n, name); err != nil {
		return err
	}
	if r.FormValue(name) != "" {
		*dst = &n
	}
	return nil
}

func (h *Handler) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", common.ErrorValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", common.ErrorValidation, strings.Join(msgs, "; "))
}
