package lancar

import (
	"fmt"
	"io"
	"net/url"

	json "github.com/goccy/go-json"
)

// Serializer converts values to and from a body representation. One binding
// exists for JSON and one for URL-encoded forms on every Settings layer.
type Serializer interface {
	Serialize(v interface{}) (string, error)
	Deserialize(r io.Reader, v interface{}) error
}

var (
	defaultJSONSerializer Serializer = JSONSerializer{}
	defaultFormSerializer Serializer = FormSerializer{}
)

// JSONSerializer is the default JSON binding.
type JSONSerializer struct{}

func (JSONSerializer) Serialize(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (JSONSerializer) Deserialize(r io.Reader, v interface{}) error {
	return json.NewDecoder(r).Decode(v)
}

// FormSerializer encodes Values, url.Values, map[string]string,
// map[string]interface{}, strings and ValuesMarshaler records as
// application/x-www-form-urlencoded. It decodes into *Values, *url.Values or
// *map[string]string.
type FormSerializer struct{}

func (FormSerializer) Serialize(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case Values:
		return t.Encode(), nil
	case url.Values:
		return ValuesFromURL(t).Encode(), nil
	case map[string]string:
		return ValuesFromMap(t).Encode(), nil
	case map[string]interface{}:
		m := make(map[string]string, len(t))
		for k, val := range t {
			if val == nil {
				continue
			}
			m[k] = fmt.Sprint(val)
		}
		return ValuesFromMap(m).Encode(), nil
	case ValuesMarshaler:
		values, err := t.MarshalValues()
		if err != nil {
			return "", err
		}
		return values.Encode(), nil
	default:
		return "", fmt.Errorf("%w: form serializer cannot encode %T", ErrUnsupportedContent, v)
	}
}

func (FormSerializer) Deserialize(r io.Reader, v interface{}) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	parsed, err := url.ParseQuery(string(body))
	if err != nil {
		return err
	}
	switch t := v.(type) {
	case *url.Values:
		*t = parsed
	case *Values:
		*t = ValuesFromURL(parsed)
	case *map[string]string:
		m := make(map[string]string, len(parsed))
		for k := range parsed {
			m[k] = parsed.Get(k)
		}
		*t = m
	default:
		return fmt.Errorf("%w: form serializer cannot decode into %T", ErrUnsupportedContent, v)
	}
	return nil
}
