package fitz

import (
	"context"
	"errors"
	"testing"

	gofitz "github.com/gen2brain/go-fitz"
	"github.com/stretchr/testify/assert"

	"examsolver/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing page", gofitz.ErrPageMissing, domain.ErrPageOutOfRange},
		{"load page", gofitz.ErrLoadPage, domain.ErrCorruptPage},
		{"open document", gofitz.ErrOpenDocument, domain.ErrCorruptPage},
		{"password", gofitz.ErrNeedsPassword, domain.ErrUnsupportedEncoding},
		{"unknown", errors.New("boom"), domain.ErrCorruptPage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.want)
		})
	}
}

func TestOpen_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOpener().Open(ctx, "/does/not/matter.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRender_OutOfRange(t *testing.T) {
	d := &document{pages: 2}
	_, err := d.Render(context.Background(), 2, 300)
	assert.ErrorIs(t, err, domain.ErrPageOutOfRange)
}
