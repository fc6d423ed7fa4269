package endpoint

import (
	"encoding"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
)

// Unmarshal populates dst (must be a non-nil pointer) from the request.
//
// Supported sources:
//   - request body: r.Body (via `body` tag)
//   - headers: r.Header (via `header` tag)
//
// Supported structtags:
//   - `body:""` reads the whole body into a []byte or string field
//   - `header:"name"` reads the first value of the named header
//   - `header:"-"` to ignore the field entirely
//
// Notes:
//   - If no data is present for a field, it is left unchanged.
//   - A body that exceeds an http.MaxBytesReader limit yields 413.
func Unmarshal(r *http.Request, dst any) error {
	if r == nil {
		return newEndpointError(http.StatusInternalServerError, "", errors.New("endpoint: decode: nil request"))
	}
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return newEndpointError(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must be a non-nil pointer"))
	}

	root := v.Elem()
	if root.Kind() == reflect.Pointer {
		if root.IsNil() {
			root.Set(reflect.New(root.Type().Elem()))
		}
		root = root.Elem()
	}
	if root.Kind() != reflect.Struct {
		return newEndpointError(http.StatusInternalServerError, "", errors.New("endpoint: decode: dst must point to a struct (or pointer to struct)"))
	}

	return unmarshalStruct(r, root)
}

func unmarshalStruct(r *http.Request, structVal reflect.Value) error {
	st := structVal.Type()
	bodyRead := false
	for i := 0; i < st.NumField(); i++ {
		sf := st.Field(i)
		if !sf.IsExported() {
			continue
		}
		field := structVal.Field(i)

		if _, ok := sf.Tag.Lookup("body"); ok {
			if bodyRead {
				return newEndpointError(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: field %s: body already consumed", sf.Name))
			}
			bodyRead = true
			b, ok, err := readBody(r)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := setFieldFromBody(field, b); err != nil {
				return newEndpointError(http.StatusInternalServerError, "", fmt.Errorf("endpoint: decode: field %s: %w", sf.Name, err))
			}
			continue
		}

		if name, ok := sf.Tag.Lookup("header"); ok {
			name = strings.TrimSpace(strings.Split(name, ",")[0])
			if name == "-" {
				continue
			}
			if name == "" {
				name = sf.Name
			}
			// Access the map directly to distinguish present-but-empty from missing.
			values := r.Header[http.CanonicalHeaderKey(name)]
			if len(values) == 0 {
				continue
			}
			if err := setFieldFromText(field, values[0]); err != nil {
				return newEndpointError(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: header %s: %w", name, err))
			}
		}
	}
	return nil
}

func readBody(r *http.Request) ([]byte, bool, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false, nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, false, newEndpointError(http.StatusRequestEntityTooLarge, "", err)
		}
		return nil, false, newEndpointError(http.StatusBadRequest, "", fmt.Errorf("endpoint: decode: body: %w", err))
	}
	return b, true, nil
}

func setFieldFromBody(v reflect.Value, b []byte) error {
	switch {
	case v.Kind() == reflect.String:
		v.SetString(string(b))
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		v.SetBytes(b)
	default:
		return fmt.Errorf("unsupported body kind %s", v.Kind())
	}
	return nil
}

func setFieldFromText(v reflect.Value, s string) error {
	if v.CanAddr() {
		if u, ok := v.Addr().Interface().(encoding.TextUnmarshaler); ok {
			return u.UnmarshalText([]byte(s))
		}
	}

	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
		return nil
	case reflect.Bool:
		bb, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(bb)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(n)
		return nil
	}
	return fmt.Errorf("unsupported kind %s", v.Kind())
}
