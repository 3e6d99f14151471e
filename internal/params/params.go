// Package params fills typed structs from loosely typed maps: struct-tag
// defaults first, then the raw values, then validation.
package params

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

var validate = validator.New()

// Decode applies defaults to out, overlays raw and validates the result.
// out must be a pointer to a struct with mapstructure tags.
func Decode(raw map[string]any, out any) error {
	if err := defaults.Set(out); err != nil {
		return fmt.Errorf("applying defaults: %w", err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			numberToSecondsHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return err
	}
	return Validate(out)
}

var durationType = reflect.TypeOf(time.Duration(0))

// numberToSecondsHookFunc reads bare numbers as seconds when the target is a
// time.Duration, matching how interval is written.
func numberToSecondsHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}
		switch from.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return time.Duration(reflect.ValueOf(data).Uint()) * time.Second, nil
		case reflect.Float32, reflect.Float64:
			return time.Duration(reflect.ValueOf(data).Float() * float64(time.Second)), nil
		}
		return data, nil
	}
}

// Validate runs struct validation and flattens field errors into one
// readable message.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	name := fieldName(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", name)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", name, fe.Param(), fe.Value())
	case "gte", "gt", "lte", "lt", "min", "max":
		return fmt.Sprintf("%s must be %s %s, got %v", name, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("field '%s' failed validation (rule: %s)", name, fe.Tag())
}

// fieldName renders the namespace without the root struct name, lower-cased
// to match the keys users write.
func fieldName(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return toSnake(ns)
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && isLowerOrDigit(s[i-1]) {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isLowerOrDigit(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
