package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// DecodeBody parses a delivery body into a generic JSON tree. GitHub sends
// either raw JSON or a form with the document in its "payload" field. A
// missing content type is treated as JSON. Numbers are kept as json.Number
// so large IDs survive formatting unchanged.
func DecodeBody(contentType string, body []byte) (any, error) {
	mediaType := contentTypeJSON
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: content type: %v", ErrMalformed, err)
		}
		mediaType = mt
	}

	switch mediaType {
	case contentTypeJSON:
		return decodeJSON(body)
	case contentTypeForm:
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("%w: form body: %v", ErrMalformed, err)
		}
		if !form.Has("payload") {
			return nil, fmt.Errorf("%w: form body has no payload field", ErrMalformed)
		}
		return decodeJSON([]byte(form.Get("payload")))
	default:
		return nil, fmt.Errorf("%w: unsupported content type %q", ErrMalformed, mediaType)
	}
}

func decodeJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: json body: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after json document", ErrMalformed)
	}
	return doc, nil
}
