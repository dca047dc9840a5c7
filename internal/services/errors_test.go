package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zerr0-C00L/CineShelf/internal/models"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
		msg  string
	}{
		{"server", &APIError{StatusCode: 503}, KindServerError, msgServer},
		{"unauthorized", &APIError{StatusCode: 401}, KindClientError, msgUnauthorized},
		{"not found", fmt.Errorf("wrapped: %w", &APIError{StatusCode: 404}), KindClientError, msgNotFound},
		{"rate limited", &APIError{StatusCode: 429}, KindClientError, msgRateLimited},
		{"bad request", &APIError{StatusCode: 400}, KindClientError, msgClient},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), KindTimeout, msgTimeout},
		{"net timeout", fmt.Errorf("get: %w", timeoutErr{}), KindTimeout, msgTimeout},
		{"dns", &net.DNSError{Err: "no such host", Name: "api.themoviedb.org"}, KindNoConnectivity, msgNoConnection},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, KindNoConnectivity, msgNoConnection},
		{"read", &net.OpError{Op: "read", Err: errors.New("connection reset")}, KindNoConnectivity, msgNetwork},
		{"other", errors.New("boom"), KindUnknown, msgUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.err)
			require.NotNil(t, f)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.msg, f.Message)
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClientTimeoutClassifiedAsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := NewTMDBClient("k", WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))
	_, err := client.FetchByCategory(context.Background(), models.CategoryPopular, nil, 1)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, Classify(err).Kind)
}

func TestPickTrailer(t *testing.T) {
	videos := []models.Video{
		{Key: "clip", Type: "Clip"},
		{Key: "teaser", Type: "TEASER"},
		{Key: "trailer", Type: "Trailer"},
	}
	assert.Equal(t, "teaser", PickTrailer(videos).Key)
	assert.Nil(t, PickTrailer([]models.Video{{Type: "Featurette"}}))
	assert.Nil(t, PickTrailer(nil))
}
