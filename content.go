package lancar

// Content type values set when a body is sent without an explicit Content-Type header.
const (
	ContentTypeJSON  = "application/json; charset=UTF-8"
	ContentTypeForm  = "application/x-www-form-urlencoded"
	ContentTypeText  = "text/plain; charset=UTF-8"
	ContentTypeBytes = "application/octet-stream"
)

// Content is a request body. Encode runs when the request is sent, using the
// serializers resolved from the request's settings.
type Content interface {
	Encode(settings *Settings) (body []byte, contentType string, err error)
}

// NoContent sends no body.
var NoContent Content

type jsonContent struct{ v interface{} }

// JSONContent serializes v with the JSON serializer.
func JSONContent(v interface{}) Content {
	return jsonContent{v: v}
}

func (c jsonContent) Encode(settings *Settings) ([]byte, string, error) {
	s, err := settings.JSONSerializer().Serialize(c.v)
	if err != nil {
		return nil, "", err
	}
	return []byte(s), ContentTypeJSON, nil
}

type formContent struct{ v interface{} }

// FormContent serializes v with the form serializer.
func FormContent(v interface{}) Content {
	return formContent{v: v}
}

func (c formContent) Encode(settings *Settings) ([]byte, string, error) {
	s, err := settings.FormSerializer().Serialize(c.v)
	if err != nil {
		return nil, "", err
	}
	return []byte(s), ContentTypeForm, nil
}

type rawContent struct {
	body        []byte
	contentType string
}

// StringContent sends s verbatim. An empty contentType means text/plain.
func StringContent(s, contentType string) Content {
	if contentType == "" {
		contentType = ContentTypeText
	}
	return rawContent{body: []byte(s), contentType: contentType}
}

// BytesContent sends b verbatim. An empty contentType means application/octet-stream.
func BytesContent(b []byte, contentType string) Content {
	if contentType == "" {
		contentType = ContentTypeBytes
	}
	return rawContent{body: b, contentType: contentType}
}

func (c rawContent) Encode(*Settings) ([]byte, string, error) {
	return c.body, c.contentType, nil
}
