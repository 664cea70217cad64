package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/kazumasamatsumoto/api-insta/internal/models"
	"github.com/kazumasamatsumoto/api-insta/internal/service"

	"github.com/gofiber/fiber/v2"
)

// payload is a request body read from JSON, urlencoded or multipart input.
// Getters return nil for fields the client did not send, which is what
// partial updates rely on.
type payload struct {
	raw    map[string]json.RawMessage
	fields map[string][]string
	files  map[string][]*multipart.FileHeader
}

func readPayload(c *fiber.Ctx) (*payload, error) {
	p := &payload{}
	contentType := strings.ToLower(string(c.Request().Header.ContentType()))

	switch {
	case strings.HasPrefix(contentType, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, models.NewValidationError("Invalid multipart body")
		}
		p.fields = form.Value
		p.files = form.File
	case strings.HasPrefix(contentType, fiber.MIMEApplicationForm):
		p.fields = map[string][]string{}
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			p.fields[string(k)] = append(p.fields[string(k)], string(v))
		})
	default:
		body := bytes.TrimSpace(c.Body())
		if len(body) == 0 {
			return p, nil
		}
		if err := json.Unmarshal(body, &p.raw); err != nil {
			return nil, models.NewValidationError("Invalid request body")
		}
	}
	return p, nil
}

// String returns a text field. JSON null counts as an empty value.
func (p *payload) String(key string) (*string, error) {
	if v, ok := p.fields[key]; ok {
		if len(v) == 0 {
			return new(string), nil
		}
		return &v[0], nil
	}
	raw, ok := p.raw[key]
	if !ok {
		return nil, nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, models.NewValidationError(key + ": Not a valid string.")
	}
	if s == nil {
		s = new(string)
	}
	return s, nil
}

// Uint returns a primary-key field, given either as a number or a numeric string.
func (p *payload) Uint(key string) (*uint, error) {
	var text string
	if v, ok := p.fields[key]; ok {
		if len(v) > 0 {
			text = v[0]
		}
	} else if raw, ok := p.raw[key]; ok {
		text = strings.Trim(string(raw), `"`)
	} else {
		return nil, nil
	}
	id, err := parsePK(key, text)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// UintList returns a list of primary keys. A single empty form value is an empty list.
func (p *payload) UintList(key string) (*[]uint, error) {
	var items []string
	if v, ok := p.fields[key]; ok {
		for _, item := range v {
			for _, part := range strings.Split(item, ",") {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
		}
	} else if raw, ok := p.raw[key]; ok {
		if isJSONNull(raw) {
			return nil, models.NewValidationError(key + ": This field may not be null.")
		}
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, models.NewValidationError(key + `: Expected a list of items.`)
		}
		for _, item := range list {
			items = append(items, strings.Trim(string(item), `"`))
		}
	} else {
		return nil, nil
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		id, err := parsePK(key, item)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return &ids, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// Upload reads the first file sent under key.
func (p *payload) Upload(key string) (*service.Upload, error) {
	headers := p.files[key]
	if len(headers) == 0 {
		return nil, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError(key + ": The submitted file is empty.")
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &service.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Content:     content,
	}, nil
}

func parsePK(key, text string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(text), 10, 64)
	if err != nil || id == 0 {
		return 0, models.NewValidationError(fmt.Sprintf("%s: Incorrect type. Expected pk value, received %q.", key, text))
	}
	return uint(id), nil
}
