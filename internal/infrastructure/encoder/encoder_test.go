package encoder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/modaics/fitsearch/internal/cfg"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Минимальный валидный PNG (8-байтная сигнатура достаточна для sniffing-а).
var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}

func newTestEncoder(t *testing.T, handler http.HandlerFunc) (*EncoderService, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc := NewEncoderService(&cfg.EncoderCfg{
		Addr:          srv.URL,
		MaxConcurrent: 4,
		MaxRetries:    3,
	}, logger.NewDiscardLogger())

	return svc, srv
}

func encodeHandler(vector []float32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req encodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(encodeResponse{Vector: vector, ModelVersion: "clip-vit-b32"})
	}
}

func TestEncoderService_EncodeText(t *testing.T) {
	svc, _ := newTestEncoder(t, encodeHandler([]float32{0.1, 0.2, 0.3}))

	res, err := svc.EncodeText(context.Background(), "vintage denim jacket")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, res.Vector)
	assert.Equal(t, "clip-vit-b32", res.ModelVersion)
}

func TestEncoderService_EncodeText_EmptyStringIsValidInput(t *testing.T) {
	var got encodeRequest
	calls := int32(0)
	svc, _ := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(encodeResponse{Vector: []float32{0.1}, ModelVersion: "clip-vit-b32"})
	})

	// Пустая строка не отсекается на клиенте: сервис кодирует её сам.
	res, err := svc.EncodeText(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1}, res.Vector)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, got.Text)
}

func TestEncoderService_EncodeImage_NotAnImage(t *testing.T) {
	calls := int32(0)
	svc, _ := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := svc.EncodeImage(context.Background(), []byte("definitely not an image"))
	assert.ErrorIs(t, err, e.ErrEncoding)
	// Битый вход отсекается до похода в сервис
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestEncoderService_EncodeImage_Empty(t *testing.T) {
	svc, _ := newTestEncoder(t, encodeHandler([]float32{0.1}))

	_, err := svc.EncodeImage(context.Background(), nil)
	assert.ErrorIs(t, err, e.ErrNoImage)
}

func TestEncoderService_Encode_NoInput(t *testing.T) {
	svc, _ := newTestEncoder(t, encodeHandler([]float32{0.1}))

	_, err := svc.Encode(context.Background(), &usecase.EncodeReq{})
	assert.ErrorIs(t, err, e.ErrEncoding)
}

func TestEncoderService_UnprocessableEntityNotRetried(t *testing.T) {
	calls := int32(0)
	svc, _ := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := svc.EncodeImage(context.Background(), pngBytes)
	assert.ErrorIs(t, err, e.ErrEncoding)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEncoderService_RetriesServerErrors(t *testing.T) {
	calls := int32(0)
	svc, _ := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(encodeResponse{Vector: []float32{1, 2}, ModelVersion: "clip-vit-b32"})
	})

	res, err := svc.EncodeImage(context.Background(), pngBytes)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, res.Vector)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestEncoderService_EmptyVectorRejected(t *testing.T) {
	svc, _ := newTestEncoder(t, encodeHandler(nil))

	_, err := svc.EncodeText(context.Background(), "silk scarf")
	assert.ErrorIs(t, err, e.ErrEmptyVector)
}

func TestEncoderService_EncodeBatch_PreservesOrder(t *testing.T) {
	svc, _ := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {
		var req encodeRequest
		json.NewDecoder(r.Body).Decode(&req)
		// Вектор кодирует длину текста: порядок результатов проверяем по ней
		json.NewEncoder(w).Encode(encodeResponse{
			Vector:       []float32{float32(len(req.Text))},
			ModelVersion: "clip-vit-b32",
		})
	})

	res, err := svc.EncodeBatch(context.Background(), []*usecase.EncodeReq{
		{Text: "a"}, {Text: "ab"}, {Text: "abc"},
	})
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []float32{1}, res[0].Vector)
	assert.Equal(t, []float32{2}, res[1].Vector)
	assert.Equal(t, []float32{3}, res[2].Vector)
}

func TestEncoderService_EncodeBatch_SingleFailureFailsBatch(t *testing.T) {
	svc, _ := newTestEncoder(t, encodeHandler([]float32{0.1}))

	_, err := svc.EncodeBatch(context.Background(), []*usecase.EncodeReq{
		{Image: pngBytes, Text: "front"},
		{Image: []byte("not an image"), Text: "back"},
	})
	assert.ErrorIs(t, err, e.ErrEncoding)
}

func TestEncoderService_Multimodal(t *testing.T) {
	var got encodeRequest
	svc, _ := newTestEncoder(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(encodeResponse{Vector: []float32{0.5}, ModelVersion: "clip-vit-b32"})
	})

	_, err := svc.Encode(context.Background(), &usecase.EncodeReq{
		Image: pngBytes,
		Text:  "leather boots",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, got.ImageBase64)
	assert.Equal(t, "leather boots", got.Text)
}
