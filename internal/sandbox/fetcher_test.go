package sandbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
	"github.com/raysh454/linkguard/internal/sandbox"
	"github.com/raysh454/linkguard/internal/testutil"
	"github.com/raysh454/linkguard/internal/webclient"
)

const resultBody = `{"task":{"uuid":"u-1","screenshotURL":"https://urlscan.test/screenshots/u-1.png"},
	"page":{"country":"NL","ip":"203.0.113.7","server":"nginx"}}`

func newFetcher(wc webclient.WebClient, delay time.Duration) *sandbox.Fetcher {
	return sandbox.NewFetcher(sandbox.Config{
		BaseURL:     "https://urlscan.test",
		APIKey:      "us-key",
		SettleDelay: delay,
	}, wc, &testutil.DummyLogger{})
}

func script(submit, result *webclient.Response) func(*webclient.Request) (*webclient.Response, error) {
	return func(req *webclient.Request) (*webclient.Response, error) {
		if req.Method == http.MethodPost {
			return submit, nil
		}
		return result, nil
	}
}

// ─── Success ───────────────────────────────────────────────────────────

func TestCapture_Success(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Handler: script(
		testutil.JSONResponse(200, `{"uuid":"u-1","api":"https://urlscan.test/api/v1/result/u-1/"}`),
		testutil.JSONResponse(200, resultBody),
	)}

	report := newFetcher(wc, 0).Capture(context.Background(), "https://target.example/")

	want := model.SandboxReport{
		ScreenshotURL: "https://urlscan.test/screenshots/u-1.png",
		Country:       "NL",
		IP:            "203.0.113.7",
		Server:        "nginx",
		ScanUUID:      "u-1",
	}
	if *report != want {
		t.Errorf("report = %+v, want %+v", *report, want)
	}
	if wc.Calls() != 2 {
		t.Errorf("expected submit + one fetch, got %d calls", wc.Calls())
	}
	if got := wc.Requests[1].URL; got != "https://urlscan.test/api/v1/result/u-1/" {
		t.Errorf("result fetched from %q", got)
	}
}

func TestCapture_TopLevelScreenshotShape(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Handler: script(
		testutil.JSONResponse(200, `{"uuid":"u-2"}`),
		testutil.JSONResponse(200, `{"screenshot":"https://cdn.test/u-2.png"}`),
	)}

	report := newFetcher(wc, 0).Capture(context.Background(), "https://target.example/")

	if report.ScreenshotURL != "https://cdn.test/u-2.png" {
		t.Errorf("unexpected screenshot %q", report.ScreenshotURL)
	}
	if report.ScanUUID != "u-2" {
		t.Errorf("uuid should fall back to the submission uuid, got %q", report.ScanUUID)
	}
	if report.Country != "" || report.IP != "" || report.Server != "" {
		t.Errorf("absent network metadata must stay empty: %+v", report)
	}
	if got := wc.Requests[1].URL; got != "https://urlscan.test/api/v1/result/u-2/" {
		t.Errorf("expected result url built from uuid, got %q", got)
	}
}

func TestCapture_ForeignAPIHostIgnored(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Handler: script(
		testutil.JSONResponse(200, `{"uuid":"u-3","api":"https://evil.example/steal"}`),
		testutil.JSONResponse(200, resultBody),
	)}

	newFetcher(wc, 0).Capture(context.Background(), "https://target.example/")

	if got := wc.Requests[1].URL; !strings.HasPrefix(got, "https://urlscan.test/") {
		t.Errorf("api key sent to foreign host: %q", got)
	}
}

// ─── Degradation ───────────────────────────────────────────────────────

func TestCapture_NonSuccess_EmptyReport(t *testing.T) {
	t.Parallel()
	okSubmit := testutil.JSONResponse(200, `{"uuid":"u-1","api":"https://urlscan.test/api/v1/result/u-1/"}`)
	cases := map[string]func(*webclient.Request) (*webclient.Response, error){
		"submit 429":       script(testutil.JSONResponse(429, `{"message":"slow down"}`), nil),
		"submit 400":       script(testutil.JSONResponse(400, `{"message":"blocked"}`), nil),
		"submit garbage":   script(testutil.JSONResponse(200, `<html>`), nil),
		"submit no handle": script(testutil.JSONResponse(200, `{"message":"ok"}`), nil),
		"result 404":       script(okSubmit, testutil.JSONResponse(404, `{"message":"not yet"}`)),
		"result garbage":   script(okSubmit, testutil.JSONResponse(200, `{{`)),
		"transport": func(*webclient.Request) (*webclient.Response, error) {
			return nil, errors.New("no route to host")
		},
	}
	for name, handler := range cases {
		handler := handler
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			wc := &testutil.DummyWebClient{Handler: handler}
			report := newFetcher(wc, 0).Capture(context.Background(), "https://target.example/")
			if report == nil {
				t.Fatal("Capture must never return nil")
			}
			if !report.Empty() {
				t.Errorf("expected empty report, got %+v", report)
			}
		})
	}
}

func TestCapture_SubmitRejected_NoFetch(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Handler: script(testutil.JSONResponse(429, `{}`), nil)}

	newFetcher(wc, time.Hour).Capture(context.Background(), "https://target.example/")

	if wc.Calls() != 1 {
		t.Errorf("expected no wait or fetch after rejected submission, got %d calls", wc.Calls())
	}
}

func TestCapture_MissingKey_NoNetwork(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{}
	report := sandbox.NewFetcher(sandbox.Config{}, wc, nil).Capture(context.Background(), "https://x.example")
	if !report.Empty() || wc.Calls() != 0 {
		t.Errorf("expected empty report without calls, got %+v after %d calls", report, wc.Calls())
	}
}

func TestCapture_CancelledDuringSettle(t *testing.T) {
	t.Parallel()
	wc := &testutil.DummyWebClient{Handler: script(
		testutil.JSONResponse(200, `{"uuid":"u-1"}`),
		testutil.JSONResponse(200, resultBody),
	)}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report := newFetcher(wc, time.Hour).Capture(ctx, "https://target.example/")
	if !report.Empty() {
		t.Errorf("expected empty report, got %+v", report)
	}
	if wc.Calls() != 1 {
		t.Errorf("result must not be fetched after cancellation, got %d calls", wc.Calls())
	}
}

// ─── Wire format ───────────────────────────────────────────────────────

func TestCapture_WireFormatAndSettleDelay(t *testing.T) {
	t.Parallel()
	var submittedAt, fetchedAt time.Time
	var body struct {
		URL        string `json:"url"`
		Visibility string `json:"visibility"`
	}
	var gotKey string

	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/api/v1/scan/", func(w http.ResponseWriter, r *http.Request) {
		submittedAt = time.Now()
		gotKey = r.Header.Get("API-Key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = w.Write([]byte(`{"uuid":"abc","api":"` + ts.URL + `/api/v1/result/abc/"}`))
	})
	mux.HandleFunc("/api/v1/result/abc/", func(w http.ResponseWriter, r *http.Request) {
		fetchedAt = time.Now()
		_, _ = w.Write([]byte(`{"task":{"uuid":"abc","screenshotURL":"https://img.test/abc.png"}}`))
	})

	wc, _ := webclient.NewNetHTTPClient(webclient.Config{}, logging.NopLogger{}, ts.Client())
	delay := 30 * time.Millisecond
	f := sandbox.NewFetcher(sandbox.Config{BaseURL: ts.URL, APIKey: "k", SettleDelay: delay}, wc, nil)

	report := f.Capture(context.Background(), "https://target.example/x")

	if report.ScreenshotURL != "https://img.test/abc.png" {
		t.Fatalf("unexpected report %+v", report)
	}
	if body.URL != "https://target.example/x" || body.Visibility != "public" {
		t.Errorf("unexpected submission body %+v", body)
	}
	if gotKey != "k" {
		t.Errorf("API-Key = %q", gotKey)
	}
	if fetchedAt.Sub(submittedAt) < delay {
		t.Errorf("result fetched %v after submission, want >= %v", fetchedAt.Sub(submittedAt), delay)
	}
}
