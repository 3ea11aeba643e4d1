package storage

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		key  string
		want string
	}{
		{name: "host only", base: "https://cdn.example.com", key: "teams/1/logo.png", want: "https://cdn.example.com/teams/1/logo.png"},
		{name: "base with path", base: "https://cdn.example.com/assets", key: "teams/1/logo.png", want: "https://cdn.example.com/assets/teams/1/logo.png"},
		{name: "leading slash in key", base: "https://cdn.example.com/assets/", key: "/teams/1/logo.png", want: "https://cdn.example.com/assets/teams/1/logo.png"},
		{name: "empty key", base: "https://cdn.example.com", key: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, err := parsePublicBaseURL(tt.base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, publicURL(base, tt.key))
		})
	}
}

func TestParsePublicBaseURLRejectsRelative(t *testing.T) {
	_, err := parsePublicBaseURL("cdn.example.com/assets")
	assert.Error(t, err)
}

func TestNewCloudflareR2UploaderRequiresAllFields(t *testing.T) {
	_, err := NewCloudflareR2Uploader(context.Background(), CloudflareR2Config{AccountID: "acc"}, slog.Default())
	assert.Error(t, err)
}
