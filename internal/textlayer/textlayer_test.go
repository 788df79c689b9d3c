package textlayer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"examsolver/internal/domain"
	"examsolver/internal/port"
	"examsolver/internal/textlayer"
)

func page(text string) port.PageText {
	var toks []domain.Token
	for _, w := range strings.Fields(text) {
		toks = append(toks, domain.Token{Text: w})
	}
	return port.PageText{Tokens: toks}
}

func TestDetectPDFType(t *testing.T) {
	rich := page("다음 글을 읽고 물음에 답하시오 가장 적절한 것은")
	empty := page("  12 ")

	assert.True(t, textlayer.IsDigital(rich))
	assert.False(t, textlayer.IsDigital(empty))

	assert.Equal(t, domain.PDFTypeDigital, textlayer.DetectPDFType([]port.PageText{rich, rich}))
	assert.Equal(t, domain.PDFTypeScanned, textlayer.DetectPDFType([]port.PageText{empty, empty}))
	assert.Equal(t, domain.PDFTypeMixed, textlayer.DetectPDFType([]port.PageText{rich, empty}))
	assert.Equal(t, domain.PDFTypeUnknown, textlayer.DetectPDFType(nil))
}
