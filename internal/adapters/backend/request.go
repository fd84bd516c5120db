package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/bnema/dnd-campaign-cli/internal/domain"
)

const (
	contentTypeJSON    = "application/json"
	multipartDataField = "data"
	multipartFileField = "files"
)

// Request describes one call to the backend. Path is either absolute or
// relative to the configured origin.
type Request struct {
	Method      string
	Path        string
	Header      http.Header
	Body        []byte
	ContentType string
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func NewJSONRequest(method string, path string, payload any) (Request, error) {
	req := Request{Method: method, Path: path}
	if payload == nil {
		return req, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s %s payload: %w", method, path, err)
	}
	req.Body = body
	req.ContentType = contentTypeJSON

	return req, nil
}

// NewMultipartRequest encodes data as a JSON "data" part followed by one
// "files" part per attachment, in order.
func NewMultipartRequest(method string, path string, data json.RawMessage, files []domain.FileAttachment) (Request, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if len(data) > 0 {
		if !json.Valid(data) {
			return Request{}, errors.New("multipart data part is not valid JSON")
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+multipartDataField+`"`)
		header.Set("Content-Type", contentTypeJSON)
		part, err := writer.CreatePart(header)
		if err != nil {
			return Request{}, fmt.Errorf("create data part: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return Request{}, fmt.Errorf("write data part: %w", err)
		}
	}

	for _, file := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, multipartFileField, escapeQuotes(file.Name)))
		mimeType := file.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		header.Set("Content-Type", mimeType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return Request{}, fmt.Errorf("create file part %q: %w", file.Name, err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return Request{}, fmt.Errorf("write file part %q: %w", file.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return Request{}, fmt.Errorf("close multipart body: %w", err)
	}

	return Request{
		Method:      method,
		Path:        path,
		Body:        buf.Bytes(),
		ContentType: writer.FormDataContentType(),
	}, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// BuildURL resolves path against baseURL. Absolute paths are returned as-is.
func BuildURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("backend base url is required")
	}
	if path == "" {
		return "", errors.New("backend path is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse backend base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("backend base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("backend base url host is required")
	}

	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse backend path: %w", err)
	}
	return endpoint.String(), nil
}
