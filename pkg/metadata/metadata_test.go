package metadata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

func fastUploader(url string, maxTries uint) *Uploader {
	return NewUploader(Options{
		Endpoint:        url,
		MaxTries:        maxTries,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
}

func TestUploadForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Doge", r.FormValue("name"))
		assert.Equal(t, "DOGE", r.FormValue("symbol"))
		assert.Equal(t, "much wow", r.FormValue("description"))
		assert.Equal(t, "https://x.com/doge", r.FormValue("twitter"))
		assert.Equal(t, "true", r.FormValue("showName"))
		_, hasTelegram := r.MultipartForm.Value["telegram"]
		assert.False(t, hasTelegram)

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		img, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "doge.png", hdr.Filename)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img)

		_, _ = w.Write([]byte(`{"metadataUri":"https://ipfs.io/ipfs/Qm123"}`))
	}))
	defer srv.Close()

	uri, err := fastUploader(srv.URL, 1).Upload(context.Background(), Token{
		Name:        "Doge",
		Symbol:      "DOGE",
		Description: "much wow",
		Twitter:     "https://x.com/doge",
		Image:       []byte{0x89, 'P', 'N', 'G'},
		ImageName:   "/tmp/doge.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://ipfs.io/ipfs/Qm123", uri)
}

func TestUploadRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch hits.Add(1) {
		case 1:
			http.Error(w, "busy", http.StatusBadGateway)
		case 2:
			http.Error(w, "slow down", http.StatusTooManyRequests)
		default:
			_, _ = w.Write([]byte(`{"metadataUri":"ipfs://ok"}`))
		}
	}))
	defer srv.Close()

	uri, err := fastUploader(srv.URL, 0).Upload(context.Background(), Token{Name: "A", Symbol: "A"})
	require.NoError(t, err)
	assert.Equal(t, "ipfs://ok", uri)
	assert.Equal(t, int32(3), hits.Load())
}

func TestUploadClientErrorIsPermanent(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "bad form", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := fastUploader(srv.URL, 0).Upload(context.Background(), Token{Name: "A", Symbol: "A"})
	require.Error(t, err)
	var epErr types.EndpointError
	require.ErrorAs(t, err, &epErr)
	assert.Equal(t, http.StatusBadRequest, epErr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestUploadMaxTries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := fastUploader(srv.URL, 3).Upload(context.Background(), Token{Name: "A", Symbol: "A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no metadataUri")
	assert.Equal(t, int32(3), hits.Load())
}

func TestUploadStopsOnContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := fastUploader(srv.URL, 0).Upload(ctx, Token{Name: "A", Symbol: "A"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUploadValidates(t *testing.T) {
	_, err := NewUploader(Options{}).Upload(context.Background(), Token{Symbol: "A"})
	var ve types.ValidationError
	assert.ErrorAs(t, err, &ve)
}
