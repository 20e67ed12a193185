package intake

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Field names accepted from callers.
const (
	FieldTaskID      = "task_id"
	FieldCommandedBy = "commanded_by"
	FieldExecutedBy  = "executed_by"
	FieldActionType  = "action_type"
	FieldContent     = "content"
	FieldStatus      = "status"
	FieldFilename    = "filename"
	FieldFile        = "file"
)

// referenceKeys are the accepted names for an external reference, canonical first.
var referenceKeys = []string{"drive_link", "reference", "link"}

// Value is an optional string field. Blank values count as absent.
type Value struct {
	Set bool
	V   string
}

// Or returns the value when present, def otherwise
func (v Value) Or(def string) string {
	if v.Set {
		return v.V
	}
	return def
}

// newValue keeps s as given; surrounding whitespace only decides presence.
func newValue(s string) Value {
	return Value{Set: strings.TrimSpace(s) != "", V: s}
}

// File is an uploaded payload held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Submission is the canonical form of an intake request.
type Submission struct {
	TaskID      Value
	CommandedBy Value
	ExecutedBy  Value
	ActionType  Value
	Content     Value
	Status      Value
	Reference   Value
	Filename    Value
	File        *File

	// Raw is the payload as received, echoed back in task failures
	Raw map[string]any
	// RequestID correlates audit rows with request logs
	RequestID string
}

// textFields returns every present free-text field for policy checks
func (s *Submission) textFields() map[string]string {
	out := make(map[string]string)
	add := func(name string, v Value) {
		if v.Set {
			out[name] = v.V
		}
	}
	add(FieldTaskID, s.TaskID)
	add(FieldCommandedBy, s.CommandedBy)
	add(FieldExecutedBy, s.ExecutedBy)
	add(FieldActionType, s.ActionType)
	add(FieldContent, s.Content)
	add(FieldStatus, s.Status)
	add(FieldFilename, s.Filename)
	return out
}

// Normalize reads an HTTP request into a Submission. Multipart form fields win over
// JSON body fields. A JSON body that is malformed or not an object is treated as empty.
func Normalize(r *http.Request, maxMemory int64) (*Submission, error) {
	sub := &Submission{Raw: map[string]any{}}

	var form url.Values
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, badRequest(CodeBadRequest, "failed to parse multipart form", err)
		}
		form = url.Values(r.MultipartForm.Value)
		file, err := readFormFile(r)
		if err != nil {
			return nil, err
		}
		sub.File = file
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, badRequest(CodeBadRequest, "failed to parse form", err)
		}
		form = r.PostForm
	default:
		body, err := decodeJSONBody(r.Body)
		if err != nil {
			return nil, badRequest(CodeBadRequest, "failed to read request body", err)
		}
		for k, v := range body {
			sub.Raw[k] = v
		}
	}

	for k, vs := range form {
		if len(vs) > 0 {
			sub.Raw[k] = vs[0]
		}
	}

	lookup := func(key string) Value {
		if vs, ok := form[key]; ok && len(vs) > 0 {
			if v := newValue(vs[0]); v.Set {
				return v
			}
		}
		if raw, ok := sub.Raw[key]; ok {
			if s, ok := stringify(raw); ok {
				return newValue(s)
			}
		}
		return Value{}
	}

	sub.TaskID = lookup(FieldTaskID)
	sub.CommandedBy = lookup(FieldCommandedBy)
	sub.ExecutedBy = lookup(FieldExecutedBy)
	sub.ActionType = lookup(FieldActionType)
	sub.Content = lookup(FieldContent)
	sub.Status = lookup(FieldStatus)
	sub.Filename = lookup(FieldFilename)
	for _, key := range referenceKeys {
		if v := lookup(key); v.Set {
			sub.Reference = v
			break
		}
	}

	return sub, nil
}

func readFormFile(r *http.Request) (*File, error) {
	headers := r.MultipartForm.File[FieldFile]
	if len(headers) == 0 {
		return nil, nil
	}
	fh := headers[0]

	f, err := fh.Open()
	if err != nil {
		return nil, badRequest(CodeBadRequest, "failed to open uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, badRequest(CodeBadRequest, "failed to read uploaded file", err)
	}

	return &File{
		Name:        strings.TrimSpace(fh.Filename),
		ContentType: strings.TrimSpace(fh.Header.Get("Content-Type")),
		Data:        data,
	}, nil
}

// decodeJSONBody returns the body as an object. Only read failures are errors.
func decodeJSONBody(body io.Reader) (map[string]any, error) {
	if body == nil {
		return map[string]any{}, nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil || out == nil {
		return map[string]any{}, nil
	}
	return out, nil
}

// stringify renders a decoded JSON value as text. null is absent.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t), true
		}
		return string(data), true
	}
}
