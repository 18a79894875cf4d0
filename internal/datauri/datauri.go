// Package datauri encodes binary payloads as RFC 2397 data URIs.
package datauri

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrMalformed is returned by Decode for strings that are not base64 data URIs.
var ErrMalformed = errors.New("malformed data URI")

// Encode returns "data:<mime>;base64,<payload>".
func Encode(mime string, data []byte) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(mime) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(mime)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}

// Decode splits a base64 data URI into its media type and payload.
func Decode(uri string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrMalformed
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrMalformed
	}
	mime, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, ErrMalformed
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Join(ErrMalformed, err)
	}
	return mime, data, nil
}
