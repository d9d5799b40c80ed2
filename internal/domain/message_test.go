package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		wantErr bool
	}{
		{"text ok", Payload{Type: TypeText, Content: "hi"}, false},
		{"text empty", Payload{Type: TypeText, Content: ""}, true},
		{"text whitespace only", Payload{Type: TypeText, Content: "   \n\t"}, true},
		{"image ok", Payload{Type: TypeImage, MediaURL: "https://cdn/x.jpg"}, false},
		{"image missing url", Payload{Type: TypeImage}, true},
		{"video missing url", Payload{Type: TypeVideo, Content: "caption"}, true},
		{"audio ok", Payload{Type: TypeAudio, MediaURL: "https://cdn/a.m4a", DurationMS: 4200}, false},
		{"gallery ok", Payload{Type: TypeGallery, Gallery: []GalleryItem{{URI: "https://cdn/1.jpg", Type: "image"}}}, false},
		{"gallery empty", Payload{Type: TypeGallery}, true},
		{"gallery item without uri", Payload{Type: TypeGallery, Gallery: []GalleryItem{{Type: "image"}}}, true},
		{"unknown type", Payload{Type: "sticker", Content: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStatusCanAdvanceTo(t *testing.T) {
	assert.True(t, StatusSending.CanAdvanceTo(StatusSent))
	assert.True(t, StatusSent.CanAdvanceTo(StatusDelivered))
	assert.True(t, StatusSent.CanAdvanceTo(StatusRead))
	assert.True(t, StatusDelivered.CanAdvanceTo(StatusRead))
	assert.True(t, StatusSending.CanAdvanceTo(StatusFailed))
	assert.True(t, StatusDelivered.CanAdvanceTo(StatusFailed))

	// never regresses, terminal states stay terminal
	assert.False(t, StatusSent.CanAdvanceTo(StatusSending))
	assert.False(t, StatusRead.CanAdvanceTo(StatusDelivered))
	assert.False(t, StatusRead.CanAdvanceTo(StatusFailed))
	assert.False(t, StatusFailed.CanAdvanceTo(StatusSent))
}

func TestNewReplySnapshotTruncates(t *testing.T) {
	long := strings.Repeat("a", 200)
	snap := NewReplySnapshot(&Message{ID: "m1", SenderID: "u2", Content: long})

	assert.Equal(t, "m1", snap.MessageID)
	assert.Equal(t, "u2", snap.SenderID)
	assert.Len(t, snap.Content, 80)
}

func TestTruncateRuneSafe(t *testing.T) {
	assert.Equal(t, "héll", Truncate("héllo", 4))
	assert.Equal(t, "hi", Truncate("hi", 80))
}
