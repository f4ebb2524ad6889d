package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"leadbot/internal/transport/telegram"
	"leadbot/pkg/logx"
)

type fakeDeliverer struct {
	mu    sync.Mutex
	calls int
	texts []string
	err   error
	panic bool
}

func (f *fakeDeliverer) SendMessage(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.texts = append(f.texts, text)
	if f.panic {
		panic("delivery exploded")
	}
	return f.err
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var fixedNow = func() time.Time { return time.Date(2025, 3, 4, 7, 5, 0, 0, time.UTC) }

func newTestServer(t *testing.T, d Deliverer) http.Handler {
	t.Helper()
	s, err := NewServer(Options{
		SiteLabel: "gazel-perevozki.ru",
		PublicURL: "https://gazel-perevozki.ru/",
		Now:       fixedNow,
	}, d, logx.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s.Handler()
}

func postLead(t *testing.T, h http.Handler, form url.Values) (int, leadResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tg-lead", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out leadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %q (%v)", rec.Body.String(), err)
	}
	return rec.Code, out
}

func TestLeadMissingFieldsNeverDelivers(t *testing.T) {
	t.Parallel()
	d := &fakeDeliverer{}
	h := newTestServer(t, d)

	tests := []url.Values{
		{"name": {""}, "phone": {"+79991234567"}},
		{"name": {"   "}, "phone": {"+79991234567"}},
		{"name": {"Иван"}, "phone": {"\t "}},
		{"message": {"only a message"}},
		{},
	}
	for _, form := range tests {
		code, out := postLead(t, h, form)
		if code != http.StatusOK || out.OK || out.Error != errMissingFields {
			t.Fatalf("form %v: code=%d out=%+v", form, code, out)
		}
	}
	if d.count() != 0 {
		t.Fatalf("delivery called %d times on invalid input", d.count())
	}
}

func TestLeadQueryStringDoesNotCount(t *testing.T) {
	t.Parallel()
	d := &fakeDeliverer{}
	h := newTestServer(t, d)
	req := httptest.NewRequest(http.MethodPost, "/tg-lead?name=Q&phone=1", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if d.count() != 0 {
		t.Fatal("query parameters must not satisfy the form")
	}
}

func TestLeadSuccessFormatsMessage(t *testing.T) {
	t.Parallel()
	d := &fakeDeliverer{}
	h := newTestServer(t, d)

	code, out := postLead(t, h, url.Values{
		"name":    {"Иван"},
		"phone":   {"+7 (999) 123-45-67"},
		"message": {"холодильник"},
	})
	if code != http.StatusOK || !out.OK || out.Message != msgLeadSent || out.Error != "" {
		t.Fatalf("code=%d out=%+v", code, out)
	}
	if d.count() != 1 {
		t.Fatalf("delivery calls = %d", d.count())
	}
	text := d.texts[0]
	if !strings.Contains(text, "\n📞 *Телефон:* +79991234567\n") {
		t.Fatalf("normalized phone line missing: %q", text)
	}
	if !strings.Contains(text, "04.03.2025 12:05") || !strings.HasSuffix(text, "Сайт gazel-perevozki.ru") {
		t.Fatalf("unexpected text: %q", text)
	}
}

func TestLeadMultipartForm(t *testing.T) {
	t.Parallel()
	d := &fakeDeliverer{}
	h := newTestServer(t, d)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("name", "Пётр")
	_ = mw.WriteField("phone", "8-800-555-35-35")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/tg-lead", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if !strings.Contains(d.texts[0], "88005553535") {
		t.Fatalf("text = %q", d.texts[0])
	}
}

func TestLeadUnknownErrorIsGeneric(t *testing.T) {
	t.Parallel()
	d := &fakeDeliverer{err: errors.New("secret internal detail")}
	_, out := postLead(t, newTestServer(t, d), url.Values{"name": {"a"}, "phone": {"1"}})
	if out.OK || out.Error != errInternal {
		t.Fatalf("out = %+v", out)
	}
	if strings.Contains(out.Error, "secret") {
		t.Fatal("internal detail leaked")
	}
}

func TestLeadPanicIsRecovered(t *testing.T) {
	t.Parallel()
	d := &fakeDeliverer{panic: true}
	h := newTestServer(t, d)
	req := httptest.NewRequest(http.MethodPost, "/tg-lead", strings.NewReader("name=a&phone=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), errInternal) {
		t.Fatalf("code=%d body=%s", rec.Code, rec.Body.String())
	}
}

// The remaining lead tests go through the real Delivery Client against a
// fake Bot API.

func TestLeadTelegramOutcomes(t *testing.T) {
	t.Parallel()
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(ok.Close)
	forbidden := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden"}`))
	}))
	t.Cleanup(forbidden.Close)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)
	gone := httptest.NewServer(http.NotFoundHandler())
	goneURL := gone.URL
	gone.Close()

	tests := []struct {
		name    string
		baseURL string
		wantOK  bool
		wantErr string
	}{
		{name: "200", baseURL: ok.URL, wantOK: true},
		{name: "403", baseURL: forbidden.URL, wantErr: "Ошибка Telegram API: 403"},
		{name: "timeout", baseURL: slow.URL, wantErr: errTimeout},
		{name: "connection", baseURL: goneURL, wantErr: errConnection},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := telegram.NewClient(telegram.ClientConfig{
				Token:   "123:abc",
				ChatID:  "42",
				BaseURL: tt.baseURL,
				Timeout: 100 * time.Millisecond,
			})
			_, out := postLead(t, newTestServer(t, client), url.Values{"name": {"Иван"}, "phone": {"+7 999"}})
			if out.OK != tt.wantOK || out.Error != tt.wantErr {
				t.Fatalf("out = %+v, want ok=%v error=%q", out, tt.wantOK, tt.wantErr)
			}
			if tt.wantOK && out.Message != msgLeadSent {
				t.Fatalf("message = %q", out.Message)
			}
		})
	}
}

func TestLeadDeliverySurvivesVisitorHangup(t *testing.T) {
	t.Parallel()
	arrived := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var texts []string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		once.Do(func() { close(arrived) })
		time.Sleep(50 * time.Millisecond)
		mu.Lock()
		texts = append(texts, r.PostForm.Get("text"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer api.Close()

	client := telegram.NewClient(telegram.ClientConfig{Token: "123:abc", ChatID: "42", BaseURL: api.URL, Timeout: time.Second})
	h := newTestServer(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	form := url.Values{"name": {"Иван"}, "phone": {"+7 999"}}
	req := httptest.NewRequest(http.MethodPost, "/tg-lead", strings.NewReader(form.Encode())).WithContext(ctx)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	go func() {
		<-arrived
		cancel()
	}()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out leadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %q (%v)", rec.Body.String(), err)
	}
	if !out.OK {
		t.Fatalf("cancelled request aborted delivery: %+v", out)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(texts) != 1 || !strings.Contains(texts[0], "Иван") {
		t.Fatalf("bot api got %q", texts)
	}
}

func TestLeadBadEscapesDropOnlyThatField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		body      string
		wantOK    bool
		wantErr   string
		wantCalls int
	}{
		{name: "bad name", body: "name=%zz&phone=123", wantErr: errMissingFields},
		{name: "bad phone", body: "name=Ivan&phone=%g1", wantErr: errMissingFields},
		{name: "bad message", body: "name=Ivan&phone=123&message=%zz", wantOK: true, wantCalls: 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := &fakeDeliverer{}
			h := newTestServer(t, d)
			req := httptest.NewRequest(http.MethodPost, "/tg-lead", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			var out leadResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatalf("response is not JSON: %q (%v)", rec.Body.String(), err)
			}
			if rec.Code != http.StatusOK || out.OK != tt.wantOK || out.Error != tt.wantErr {
				t.Fatalf("code=%d out=%+v", rec.Code, out)
			}
			if d.count() != tt.wantCalls {
				t.Fatalf("delivery calls = %d, want %d", d.count(), tt.wantCalls)
			}
		})
	}
}

func TestHealthAndPingAlwaysOK(t *testing.T) {
	t.Parallel()
	// A failing deliverer must not influence the probes.
	h := newTestServer(t, &fakeDeliverer{err: errors.New("down")})

	for _, path := range []string{"/health", "/ping"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s code = %d", path, rec.Code)
		}
		var out map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s not JSON: %v", path, err)
		}
		if out["status"] != "ok" {
			t.Fatalf("%s status = %q", path, out["status"])
		}
		if path == "/ping" {
			ts, err := time.Parse(time.RFC3339, out["timestamp"])
			if err != nil || !ts.Equal(fixedNow()) {
				t.Fatalf("timestamp = %q (%v)", out["timestamp"], err)
			}
		}
		if path == "/health" && len(out) != 1 {
			t.Fatalf("health body = %v", out)
		}
	}
}

func TestCrawlerFiles(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, &fakeDeliverer{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/robots.txt", nil))
	want := "User-agent: *\nAllow: /\nDisallow: /tg-lead\nSitemap: https://gazel-perevozki.ru/sitemap.xml"
	if rec.Body.String() != want {
		t.Fatalf("robots = %q", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sitemap.xml", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "<loc>https://gazel-perevozki.ru/</loc>") || !strings.Contains(body, "<lastmod>2025-12-21</lastmod>") {
		t.Fatalf("sitemap = %s", body)
	}
}

func TestLandingAndStatic(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, &fakeDeliverer{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `action="/tg-lead"`) {
		t.Fatalf("landing code=%d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "2025 gazel-perevozki.ru") {
		t.Fatal("landing footer not rendered")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/css/style.css", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), ".hero") {
		t.Fatalf("static code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path code = %d", rec.Code)
	}
}

func TestServiceLifecycle(t *testing.T) {
	t.Parallel()
	svc := NewService(ServiceConfig{Addr: "127.0.0.1:0"}, newTestServer(t, &fakeDeliverer{}), logx.Nop())
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	addr := svc.Addr()
	if addr == "" {
		t.Fatal("expected bound address")
	}

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if svc.Addr() != "" {
		t.Fatal("address should be cleared after Stop")
	}
	if _, err := client.Get("http://" + addr + "/health"); err == nil {
		t.Fatal("server still reachable after Stop")
	}
}

func TestServiceStartFailsOnBusyPort(t *testing.T) {
	t.Parallel()
	first := NewService(ServiceConfig{Addr: "127.0.0.1:0"}, http.NotFoundHandler(), logx.Nop())
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop(context.Background())

	second := NewService(ServiceConfig{Addr: first.Addr()}, http.NotFoundHandler(), logx.Nop())
	if err := second.Start(context.Background()); err == nil {
		_ = second.Stop(context.Background())
		t.Fatal("expected listen error on busy port")
	}
}
