package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

type formatExtractor func(ctx context.Context, raw []byte) (string, error)

// Extractor picks a format by file extension. Unknown extensions are read as UTF-8 text.
type Extractor struct {
	byExt map[string]formatExtractor
}

func New() *Extractor {
	return &Extractor{
		byExt: map[string]formatExtractor{
			".pdf":  extractPDF,
			".xlsx": extractXLSX,
		},
	}
}

func (e *Extractor) Extract(ctx context.Context, filename string, raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract", fmt.Errorf("%s is empty", filename))
	}
	fn, ok := e.byExt[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		fn = extractPlainText
	}
	text, err := fn(ctx, raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract "+filename, err)
	}
	return strings.TrimSpace(text), nil
}
