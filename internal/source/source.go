// Package source holds what the entity sources share: record shape checks and
// metadata normalization. The concrete readers live in its subpackages.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/kailas-cloud/zoomgraph/internal/domain"
	"github.com/kailas-cloud/zoomgraph/internal/domain/entity"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func recordValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Check validates the shape of a raw record: a bounded id and no empty vectors.
// Semantic checks (dimensions, finiteness, timestamps) happen when the entity is built.
func Check(rec *entity.Record) error {
	err := recordValidator().Struct(rec)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return domain.NewInputError(rec.ID, fe.Field(), message(fe))
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must not be empty"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// Metadata flattens decoded JSON metadata into strings.
// Lists become comma separated values; nested objects stay JSON.
func Metadata(raw map[string]any) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := MetadataValue(v); ok {
			out[k] = s
		}
	}
	return out
}

// MetadataValue renders one metadata value; nulls are dropped.
func MetadataValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s, ok := MetadataValue(item); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), true
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x), true
		}
		return string(b), true
	}
}

// DecodeMetadata parses a JSON object of metadata. Empty input yields nil.
func DecodeMetadata(data []byte) (map[string]string, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", domain.ErrInvalidInput, err)
	}
	return Metadata(raw), nil
}
