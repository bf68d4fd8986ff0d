package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = validator.New()

// Host app names: lowercase letters, digits and dashes.
var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)

// Container port mappings such as "http:80:5000" or a bare "15432".
var portRegex = regexp.MustCompile(`^([a-z]+:)?[0-9]{1,5}(:[0-9]{1,5})?$`)

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return nameRegex.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("port", func(fl validator.FieldLevel) bool {
		return portRegex.MatchString(fl.Field().String())
	})
}

// Decode reads a JSON body of at most 1 MiB into v and validates it.
func Decode(r *http.Request, v any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %s", describe(err))
	}
	return nil
}

// describe turns validator output into "services[0].name: required" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, field+": "+rule)
	}
	return strings.Join(parts, ", ")
}

// Param returns a non-empty chi URL parameter.
func Param(r *http.Request, key string) (string, error) {
	s := chi.URLParam(r, key)
	if s == "" {
		return "", fmt.Errorf("missing %s", key)
	}
	return s, nil
}
