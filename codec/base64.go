package codec

import (
	"encoding/base64"

	entikit "github.com/reoring/entikit"
)

// EncodeBase64 renders binary data as standard base64 text, the neutral-side
// representation of binary fields.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 parses standard base64 text into binary data.
func DecodeBase64(path, s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, entikit.FieldErrors{{Path: path, Code: entikit.CodeInvalidFormat, Message: "invalid base64 data", Cause: err}}
	}
	return b, nil
}
