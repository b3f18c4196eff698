package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"access denied", fmt.Errorf("open: %w", ErrAccessDenied), KindAccessDenied},
		{"unsupported", ErrUnsupportedVolume, KindUnsupported},
		{"excluded", fmt.Errorf("%w: removable", ErrExcludedVolume), KindExcluded},
		{"malformed", ErrMalformedRecord, KindMalformedRecord},
		{"depth", ErrDepthExceeded, KindDepthExceeded},
		{"not frozen", ErrIndexNotFrozen, KindNotFrozen},
		{"canceled", context.Canceled, KindCanceled},
		{"unknown", io.ErrUnexpectedEOF, KindTransientIO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestVolumeErrorWrapsUnknownAsTransient(t *testing.T) {
	err := NewVolumeError("C:", "enumerate", io.ErrUnexpectedEOF)
	require.NotNil(t, err)

	assert.ErrorIs(t, err, ErrTransientIO)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, KindTransientIO, err.Kind())
	assert.Contains(t, err.Error(), "volume C:")

	var ve *VolumeError
	require.True(t, errors.As(error(err), &ve))
	assert.Equal(t, "enumerate", ve.Op)
}

func TestVolumeErrorKeepsTaxonomy(t *testing.T) {
	err := NewVolumeError("D:", "open", ErrAccessDenied)

	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.NotErrorIs(t, err, ErrTransientIO)
	assert.Equal(t, KindAccessDenied, err.Kind())
	assert.Nil(t, NewVolumeError("D:", "open", nil))
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, WrapError(nil, "ignored"))
	err := WrapError(ErrRecordNotFound, "lookup %d", 42)
	assert.EqualError(t, err, "lookup 42: record not found")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
