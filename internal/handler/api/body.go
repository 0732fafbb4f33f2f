package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/labstack/echo/v4"
)

const maxBodyBytes = 1 << 20

var (
	errEmptyBody     = errors.New("empty body")
	errMalformedBody = errors.New("malformed body")
)

// readBody returns the request body, or errEmptyBody when there is none.
func readBody(c echo.Context) ([]byte, error) {
	if c.Request().Body == nil {
		return nil, errEmptyBody
	}
	b, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, errEmptyBody
	}
	return b, nil
}

// readObject decodes the body as a JSON object keeping field values raw, so
// handlers can tell a missing field from a mistyped one.
func readObject(c echo.Context) (map[string]json.RawMessage, error) {
	b, err := readBody(c)
	if err != nil {
		return nil, err
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil || obj == nil {
		return nil, errMalformedBody
	}
	return obj, nil
}
