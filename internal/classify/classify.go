package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Classifier predicts the responsible department from a report photo.
type Classifier interface {
	ClassifyImage(ctx context.Context, imageURL string) (string, error)
}

// HTTPClassifier calls the department model service's /predict_url endpoint.
type HTTPClassifier struct {
	BaseURL string
	Client  *http.Client
}

type predictRequest struct {
	ImageURL string `json:"image_url"`
}

type predictResponse struct {
	PredictedClass string `json:"predicted_class"`
}

func (h HTTPClassifier) ClassifyImage(ctx context.Context, imageURL string) (string, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 15 * time.Second}
	}

	b, _ := json.Marshal(predictRequest{ImageURL: imageURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+"/predict_url", bytes.NewBuffer(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New("department classifier error")
	}

	var r predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if r.PredictedClass == "" {
		return "", errors.New("department classifier returned no prediction")
	}
	return r.PredictedClass, nil
}

// MockClassifier returns a fixed department; used when no model service is
// configured.
type MockClassifier struct {
	Department string
}

func (m MockClassifier) ClassifyImage(ctx context.Context, imageURL string) (string, error) {
	if m.Department == "" {
		return "general", nil
	}
	return m.Department, nil
}
