package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/raaihank/transcript-sentinel/internal/extract"
	"github.com/tidwall/gjson"
)

// uploadField is the multipart form field holding an uploaded transcript.
const uploadField = "file"

// inputError is a request body problem with the status it maps to.
type inputError struct {
	status  int
	message string
}

func (e *inputError) Error() string {
	return e.message
}

// input is a decoded request body.
type input struct {
	text   string
	source string
}

// readInput accepts a raw text body, a JSON body {"text": ...} or a multipart
// upload in the "file" field. Bodies over limit bytes are refused.
func readInput(w http.ResponseWriter, r *http.Request, limit int64) (*input, error) {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return readUpload(r, limit)
	case "application/json":
		body, err := readBody(r.Body)
		if err != nil {
			return nil, err
		}
		return parseJSONInput(body)
	default:
		body, err := readBody(r.Body)
		if err != nil {
			return nil, err
		}
		return decodeText(body, "")
	}
}

func readBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &inputError{http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
		}
		return nil, &inputError{http.StatusBadRequest, "failed to read request body"}
	}
	return data, nil
}

func readUpload(r *http.Request, limit int64) (*input, error) {
	memory := limit
	if memory <= 0 {
		memory = 32 << 20
	}
	if err := r.ParseMultipartForm(memory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &inputError{http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)}
		}
		return nil, &inputError{http.StatusBadRequest, "invalid multipart form"}
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, &inputError{http.StatusBadRequest, fmt.Sprintf("missing %q upload", uploadField)}
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !extract.AcceptedExtension(name) {
		return nil, &inputError{http.StatusUnsupportedMediaType, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name))}
	}

	data, err := readBody(file)
	if err != nil {
		return nil, err
	}
	return decodeText(data, name)
}

func parseJSONInput(body []byte) (*input, error) {
	if !gjson.ValidBytes(body) {
		return nil, &inputError{http.StatusBadRequest, "invalid JSON body"}
	}
	text := gjson.GetBytes(body, "text")
	if text.Type != gjson.String {
		return nil, &inputError{http.StatusBadRequest, `JSON body must carry a "text" string`}
	}
	return &input{text: text.String(), source: gjson.GetBytes(body, "name").String()}, nil
}

func decodeText(data []byte, source string) (*input, error) {
	text, _, err := extract.Decode(data)
	if err != nil {
		if errors.Is(err, extract.ErrUndecodableInput) {
			return nil, &inputError{http.StatusUnprocessableEntity, "could not decode input as text"}
		}
		return nil, &inputError{http.StatusBadRequest, err.Error()}
	}
	return &input{text: text, source: source}, nil
}
