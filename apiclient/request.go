package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
)

const contentTypeJSON = "application/json"

// Request describes one remote API call. Bodies are kept in their source
// form and encoded per attempt so a request can be replayed after a refresh.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      any        // JSON encoded when non-nil
	Multipart *Multipart // takes precedence over Body
}

// Multipart is a form upload with plain fields and files.
type Multipart struct {
	Fields map[string]string
	Files  []File
}

// File is a single uploaded document.
type File struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

func (r *Request) encode() (io.Reader, string, error) {
	if r.Multipart != nil {
		return r.Multipart.encode()
	}
	if r.Body == nil {
		return nil, "", nil
	}
	b, err := json.Marshal(r.Body)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling request body: %w", err)
	}
	return bytes.NewReader(b), contentTypeJSON, nil
}

func (m *Multipart) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range m.Fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", name, err)
		}
	}
	for _, f := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.Field), escapeQuotes(f.Name)))
		ctype := f.ContentType
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		h.Set("Content-Type", ctype)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("creating part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("writing part %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func escapeQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
