package avatar

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultURL(t *testing.T) {
	assert.Equal(t, "https://ui-avatars.com/api/?background=random&color=fff&name=Omar+Ali", DefaultURL("Omar Ali"))
}

func TestNewCloudinaryNeedsCredentials(t *testing.T) {
	assert.Nil(t, NewCloudinary("", "k", "s", ""))

	var c *Cloudinary
	_, err := c.Upload(context.Background(), nil, "a.png")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSignature(t *testing.T) {
	c := NewCloudinary("demo", "key", "secret", "halaqa")
	got := c.sign(map[string]string{"timestamp": "100", "folder": "halaqa", "api_key": "key"})
	want := fmt.Sprintf("%x", sha1.Sum([]byte("folder=halaqa&timestamp=100secret")))
	assert.Equal(t, want, got)
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1_1/demo/image/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "key", r.FormValue("api_key"))
		assert.NotEmpty(t, r.FormValue("signature"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"public_id":"x","secure_url":"https://cdn/x.png"}`)
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "")
	c.BaseURL = srv.URL
	c.now = func() time.Time { return time.Unix(100, 0) }

	url, err := c.Upload(context.Background(), []byte("png"), "a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.png", url)
}

func TestUploadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewCloudinary("demo", "key", "secret", "")
	c.BaseURL = srv.URL
	_, err := c.Upload(context.Background(), []byte("png"), "a.png")
	assert.Error(t, err)
}
