package media

import (
	"os/exec"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpener_Override(t *testing.T) {
	o := NewOpener("firefox")
	assert.Equal(t, "firefox", o.Command())
}

func TestNewOpener_PlatformDefault(t *testing.T) {
	o := NewOpener("")
	switch runtime.GOOS {
	case "darwin":
		assert.Equal(t, "open", o.Command())
	case "windows":
		assert.Equal(t, "rundll32", o.Command())
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "https article", url: "https://example.com/story", wantErr: false},
		{name: "empty", url: "", wantErr: true},
		{name: "javascript scheme", url: "javascript:alert(1)", wantErr: true},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true},
	}

	truePath, err := exec.LookPath("true")
	if err != nil {
		t.Skip("true not available")
	}
	o := NewOpener(truePath)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := o.Open(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpen_NoCommand(t *testing.T) {
	o := &Opener{}
	err := o.Open("https://example.com/story")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no application")
}

func TestOpen_MissingBinary(t *testing.T) {
	o := NewOpener("fwrd-news-no-such-opener")
	assert.Error(t, o.Open("https://example.com/story"))
}
