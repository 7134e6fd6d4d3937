package deepstack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"facewatch-go/config"
)

func newTestClient(t *testing.T, srv *httptest.Server, apiKey string) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return NewClient(config.DeepStackConfig{
		Host:    u.Hostname(),
		Port:    port,
		APIKey:  apiKey,
		Timeout: 5,
	})
}

func TestRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/vision/face/recognize" {
			t.Errorf("path = %q, want /v1/vision/face/recognize", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		if got := r.FormValue("api_key"); got != "secret" {
			t.Errorf("api_key = %q, want %q", got, "secret")
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("image part missing: %v", err)
		}
		w.Write([]byte(`{"success": true, "predictions": [
			{"confidence": 0.91, "userid": "alice", "x_min": 1, "y_min": 2, "x_max": 3, "y_max": 4},
			{"confidence": 0.80, "userid": "unknown", "x_min": 5, "y_min": 6, "x_max": 7, "y_max": 8}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "secret")
	preds, err := c.Recognize(context.Background(), []byte("jpegdata"))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("len(preds) = %d, want 2", len(preds))
	}
	if preds[0].UserID == nil || *preds[0].UserID != "alice" {
		t.Errorf("preds[0].UserID = %v, want alice", preds[0].UserID)
	}
	if preds[0].Confidence != 0.91 {
		t.Errorf("preds[0].Confidence = %v, want 0.91", preds[0].Confidence)
	}
	if preds[0].XMax != 3 {
		t.Errorf("preds[0].XMax = %d, want 3", preds[0].XMax)
	}
}

func TestDetectLeavesIdentityNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/vision/face" {
			t.Errorf("path = %q, want /v1/vision/face", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		if _, ok := r.MultipartForm.Value["api_key"]; ok {
			t.Error("api_key field sent despite empty key")
		}
		w.Write([]byte(`{"success": true, "predictions": [
			{"confidence": 0.88, "x_min": 1, "y_min": 2, "x_max": 3, "y_max": 4}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	preds, err := c.Detect(context.Background(), []byte("jpegdata"))
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("len(preds) = %d, want 1", len(preds))
	}
	if preds[0].UserID != nil {
		t.Errorf("preds[0].UserID = %q, want nil", *preds[0].UserID)
	}
}

func TestRegisterSendsName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/vision/face/register" {
			t.Errorf("path = %q, want /v1/vision/face/register", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		if got := r.FormValue("userid"); got != "alice" {
			t.Errorf("userid = %q, want alice", got)
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	if err := c.Register(context.Background(), "alice", strings.NewReader("jpegdata")); err != nil {
		t.Errorf("Register() error = %v", err)
	}
}

func TestServiceFailureSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "invalid api key"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "wrong")
	_, err := c.Recognize(context.Background(), []byte("jpegdata"))
	if err == nil {
		t.Fatal("Recognize() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error = %v, want it to carry the service message", err)
	}
}

func TestHTTPErrorSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	_, err := c.Detect(context.Background(), []byte("jpegdata"))
	if err == nil {
		t.Fatal("Detect() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("error = %v, want status in message", err)
	}
}

func TestListFaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/vision/face/list" {
			t.Errorf("path = %q, want /v1/vision/face/list", r.URL.Path)
		}
		w.Write([]byte(`{"success": true, "faces": ["alice", "bob"]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	faces, err := c.ListFaces(context.Background())
	if err != nil {
		t.Fatalf("ListFaces() error = %v", err)
	}
	if len(faces) != 2 || faces[0] != "alice" || faces[1] != "bob" {
		t.Errorf("ListFaces() = %v, want [alice bob]", faces)
	}
}

func TestDeleteFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/vision/face/delete" {
			t.Errorf("path = %q, want /v1/vision/face/delete", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.FormValue("userid"); got != "bob" {
			t.Errorf("userid = %q, want bob", got)
		}
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "")
	if err := c.DeleteFace(context.Background(), "bob"); err != nil {
		t.Errorf("DeleteFace() error = %v", err)
	}
}
