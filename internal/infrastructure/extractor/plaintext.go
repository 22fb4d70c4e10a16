package extractor

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"
)

func extractPlainText(_ context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", errors.New("not valid UTF-8 text")
	}
	return strings.TrimPrefix(string(raw), "\ufeff"), nil
}
