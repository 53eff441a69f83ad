package encoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modaics/fitsearch/internal/cfg"
	"github.com/modaics/fitsearch/internal/usecase"
	"github.com/modaics/fitsearch/pkg/e"
	"github.com/modaics/fitsearch/pkg/jitter"
	"github.com/modaics/fitsearch/pkg/logger"
)

// EncoderService — HTTP-клиент CLIP-сервиса векторизации.
// Сервис принимает изображение и/или текст и возвращает embedding в общем
// векторном пространстве. Транзиентные ошибки ретраятся с экспоненциальной
// задержкой и jitter; ошибки декодирования входа (e.ErrEncoding) не ретраятся,
// повторная отправка битой картинки не станет успешнее.
type EncoderService struct {
	client *http.Client
	cfg    *cfg.EncoderCfg
	sem    chan struct{}
	logger logger.Logger
}

func NewEncoderService(cfg *cfg.EncoderCfg, logger logger.Logger) *EncoderService {
	return &EncoderService{
		client: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
		logger: logger,
	}
}

type encodeRequest struct {
	ImageBase64 string `json:"image_base64,omitempty"`
	Text        string `json:"text"`
}

type encodeResponse struct {
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// EncodeText строит вектор по текстовому запросу. Пустая строка — валидный
// вход: CLIP кодирует и её, запрос уходит в сервис как есть.
func (s *EncoderService) EncodeText(ctx context.Context, text string) (*usecase.EncodeRes, error) {
	return s.encodeWithRetry(ctx, &encodeRequest{Text: text})
}

// EncodeImage строит вектор по байтам изображения.
// Битые и не-image данные отсекаются до похода в сервис.
func (s *EncoderService) EncodeImage(ctx context.Context, data []byte) (*usecase.EncodeRes, error) {
	const op = "EncoderService.EncodeImage"

	if err := validateImageBytes(data); err != nil {
		return nil, e.Wrap(op, err)
	}

	return s.encodeWithRetry(ctx, &encodeRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(data),
	})
}

// Encode строит мультимодальный вектор по изображению и/или тексту.
func (s *EncoderService) Encode(ctx context.Context, req *usecase.EncodeReq) (*usecase.EncodeRes, error) {
	const op = "EncoderService.Encode"

	if len(req.Image) == 0 && strings.TrimSpace(req.Text) == "" {
		return nil, e.Wrap(op, e.ErrEncoding)
	}

	httpReq := &encodeRequest{Text: req.Text}
	if len(req.Image) > 0 {
		if err := validateImageBytes(req.Image); err != nil {
			return nil, e.Wrap(op, err)
		}
		httpReq.ImageBase64 = base64.StdEncoding.EncodeToString(req.Image)
	}

	return s.encodeWithRetry(ctx, httpReq)
}

// EncodeBatch векторизует несколько запросов параллельно. Конкурентность
// ограничена общим семафором сервиса, результаты — в порядке запросов.
// Отказ любого запроса валит весь батч: частично векторизованная вещь
// каталогу не нужна.
func (s *EncoderService) EncodeBatch(ctx context.Context, reqs []*usecase.EncodeReq) ([]*usecase.EncodeRes, error) {
	const op = "EncoderService.EncodeBatch"

	if len(reqs) == 0 {
		return nil, e.Wrap(op, e.ErrEncoding)
	}

	results := make([]*usecase.EncodeRes, len(reqs))
	errCh := make(chan error, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *usecase.EncodeReq) {
			defer wg.Done()

			res, err := s.Encode(ctx, req)
			if err != nil {
				errCh <- err
				return
			}
			results[i] = res
		}(i, req)
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return nil, e.Wrap(op, err)
	}

	return results, nil
}

// encodeWithRetry выполняет запрос к сервису с retry-логикой и экспоненциальной задержкой
func (s *EncoderService) encodeWithRetry(ctx context.Context, req *encodeRequest) (*usecase.EncodeRes, error) {
	const (
		op         = "EncoderService.encodeWithRetry"
		baseJitter = 1 * time.Second
		maxJitter  = 30 * time.Second
	)

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		res, err := s.encodeOnce(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		// e.ErrEncoding детерминирована входом, ретраить бессмысленно
		if errors.Is(err, e.ErrEncoding) {
			return nil, e.Wrap(op, err)
		}

		if attempt == s.cfg.MaxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(
			baseJitter,
			maxJitter,
			attempt,
			jitter.DefaultJitter,
		)

		s.logger.Warnf("encode failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, e.Wrap(op, ctx.Err())
		}
	}

	return nil, e.Wrap(op, fmt.Errorf("all %d attempts failed: %w", s.cfg.MaxRetries, lastErr))
}

func (s *EncoderService) encodeOnce(ctx context.Context, req *encodeRequest) (*usecase.EncodeRes, error) {
	const op = "EncoderService.encodeOnce"

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, e.Wrap(op, ctx.Err())
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Addr+"/encode", bytes.NewReader(body))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, e.Wrap(op, e.ErrTimeout)
		}
		return nil, e.Wrap(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// Сервис не смог декодировать вход
		return nil, e.Wrap(op, e.ErrEncoding)
	case resp.StatusCode >= 500:
		return nil, e.Wrap(op, fmt.Errorf("encoder returned %d", resp.StatusCode))
	default:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, e.Wrap(op, fmt.Errorf("encoder returned %d: %s", resp.StatusCode, data))
	}

	var encResp encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&encResp); err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(encResp.Vector) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyVector)
	}

	return usecase.NewEncodeRes(encResp.Vector, encResp.ModelVersion), nil
}

// validateImageBytes отсекает пустые и заведомо не-image данные по сигнатуре.
func validateImageBytes(data []byte) error {
	if len(data) == 0 {
		return e.ErrNoImage
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return e.ErrEncoding
	}

	return nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
