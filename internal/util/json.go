package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DescribeJSONError renders a decoding error with its byte offset or the
// offending field, whichever applies.
func DescribeJSONError(err error) string {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Sprintf("%v at offset %d", syntaxErr, syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return fmt.Sprintf("document is %s, want %s", typeErr.Value, typeErr.Type)
		}
		return fmt.Sprintf("field %q is %s, want %s", typeErr.Field, typeErr.Value, typeErr.Type)
	}
	return err.Error()
}

// DecodeFirst decodes the first JSON value in b into v and ignores whatever
// follows it, such as cipher block padding.
func DecodeFirst(b []byte, v any) error {
	return json.NewDecoder(bytes.NewReader(b)).Decode(v)
}
