package deepstack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"facewatch-go/config"

	log "github.com/sirupsen/logrus"
)

// Client talks to a DeepStack face API over HTTP.
type Client struct {
	config     config.DeepStackConfig
	httpClient *http.Client
	baseURL    string
}

// Prediction is one face entry in a service response. UserID is only
// present in recognition responses; detection leaves it nil.
type Prediction struct {
	Confidence float64 `json:"confidence"`
	UserID     *string `json:"userid,omitempty"`
	XMin       int     `json:"x_min"`
	YMin       int     `json:"y_min"`
	XMax       int     `json:"x_max"`
	YMax       int     `json:"y_max"`
}

// apiResponse is the envelope shared by all DeepStack face endpoints.
type apiResponse struct {
	Success     bool         `json:"success"`
	Predictions []Prediction `json:"predictions"`
	Faces       []string     `json:"faces"`
	Error       string       `json:"error"`
	Duration    float64      `json:"duration"`
}

// NewClient creates a client for the configured DeepStack instance.
// The HTTP timeout bounds every call; there are no retries.
func NewClient(cfg config.DeepStackConfig) *Client {
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.BaseURL() + "/v1/vision/face",
	}
}

// Detect asks the service for face locations only.
func (c *Client) Detect(ctx context.Context, image []byte) ([]Prediction, error) {
	resp, err := c.postImage(ctx, c.baseURL, image, nil)
	if err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// Recognize asks the service for face locations and identities.
func (c *Client) Recognize(ctx context.Context, image []byte) ([]Prediction, error) {
	resp, err := c.postImage(ctx, c.baseURL+"/recognize", image, nil)
	if err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// Register teaches the service a face image for the given name.
func (c *Client) Register(ctx context.Context, name string, image io.Reader) error {
	data, err := io.ReadAll(image)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	_, err = c.postImage(ctx, c.baseURL+"/register", data, map[string]string{"userid": name})
	return err
}

// ListFaces returns all names registered with the service.
func (c *Client) ListFaces(ctx context.Context) ([]string, error) {
	resp, err := c.postForm(ctx, c.baseURL+"/list", nil)
	if err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

// DeleteFace removes a registered name and its face images.
func (c *Client) DeleteFace(ctx context.Context, name string) error {
	_, err := c.postForm(ctx, c.baseURL+"/delete", map[string]string{"userid": name})
	return err
}

// postImage sends a multipart request with the image and any extra
// form fields. A non-empty API key travels as a form field.
func (c *Client) postImage(ctx context.Context, apiURL string, image []byte, fields map[string]string) (*apiResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if c.config.APIKey != "" {
		if err := writer.WriteField("api_key", c.config.APIKey); err != nil {
			return nil, fmt.Errorf("failed to write api_key field: %w", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write %s field: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

// postForm sends a form-encoded request for the endpoints that take
// no image.
func (c *Client) postForm(ctx context.Context, apiURL string, fields map[string]string) (*apiResponse, error) {
	form := url.Values{}
	if c.config.APIKey != "" {
		form.Set("api_key", c.config.APIKey)
	}
	for key, value := range fields {
		form.Set(key, value)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*apiResponse, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	log.Debugf("DeepStack %s took %s", req.URL.Path, time.Since(start))

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("DeepStack API returned error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("DeepStack API reported failure: %s", result.Error)
	}

	return &result, nil
}
