package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"codeberg.org/snonux/lingogate/internal/api"
)

// MockResponse scripts one answer of the fake service. A zero StatusCode
// means the default successful translation, with Headers still applied.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// Call is one translate request seen by the fake service
type Call struct {
	Body  api.TranslateRequest
	Pass  string
	Token string
}

// FakeService is an httptest server speaking the translation API
type FakeService struct {
	*httptest.Server

	mu          sync.Mutex
	calls       []Call
	script      map[int]MockResponse
	siteKeyHits int

	SiteKey     string
	TokenHeader string
	// IssuePass, when set, is returned as a fresh pass on every success
	IssuePass string
}

// NewFakeService starts a fake service closed at test cleanup
func NewFakeService(t *testing.T) *FakeService {
	t.Helper()

	f := &FakeService{
		script:      make(map[int]MockResponse),
		SiteKey:     "1x00000000000000000000AA",
		TokenHeader: api.DefaultTokenHeader,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(api.SiteKeyPath, f.handleSiteKey)
	mux.HandleFunc(api.TranslatePath, f.handleTranslate)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// Respond scripts the answer to the n-th translate call (0-based)
func (f *FakeService) Respond(n int, resp MockResponse) {
	f.mu.Lock()
	f.script[n] = resp
	f.mu.Unlock()
}

// Calls returns the translate requests seen so far
func (f *FakeService) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of translate requests
func (f *FakeService) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Targets returns the target of every call in order
func (f *FakeService) Targets() []string {
	var out []string
	for _, c := range f.Calls() {
		out = append(out, c.Body.TargetLang)
	}
	return out
}

// SiteKeyHits returns how often the site key was fetched
func (f *FakeService) SiteKeyHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.siteKeyHits
}

func (f *FakeService) handleSiteKey(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.siteKeyHits++
	resp := api.SiteKeyResponse{SiteKey: f.SiteKey, HeaderName: f.TokenHeader}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *FakeService) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var body api.TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, Call{
		Body:  body,
		Pass:  r.Header.Get(api.PassHeader),
		Token: r.Header.Get(f.TokenHeader),
	})
	scripted, ok := f.script[n]
	issue := f.IssuePass
	f.mu.Unlock()

	if ok {
		for k, v := range scripted.Headers {
			w.Header().Set(k, v)
		}
		if scripted.StatusCode != 0 {
			w.WriteHeader(scripted.StatusCode)
			_, _ = w.Write([]byte(scripted.Body))
			return
		}
	}

	if issue != "" && w.Header().Get(api.PassHeader) == "" {
		w.Header().Set(api.PassHeader, issue)
	}
	source := "en"
	if body.SourceLang != nil {
		source = *body.SourceLang
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(api.TranslateResponse{
		SourceLang:     source,
		TargetLang:     body.TargetLang,
		TranslatedText: fmt.Sprintf("[%s] %s", body.TargetLang, body.Text),
	})
}
