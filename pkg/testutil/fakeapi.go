package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	jsonpool "github.com/ajitpratap0/console/pkg/json"
)

// Submission is a request body received by FakeAPI
type Submission struct {
	Path string
	Body map[string]interface{}
}

// FakeAPI serves JSON documents by path and records POSTed payloads
type FakeAPI struct {
	Server *httptest.Server

	mu          sync.Mutex
	docs        map[string]interface{}
	statuses    map[string]int
	gates       map[string]chan struct{}
	submissions []Submission
	hits        map[string]int
}

// NewFakeAPI starts a server that is closed when the test ends
func NewFakeAPI(t *testing.T) *FakeAPI {
	api := &FakeAPI{
		docs:     make(map[string]interface{}),
		statuses: make(map[string]int),
		gates:    make(map[string]chan struct{}),
		hits:     make(map[string]int),
	}
	api.Server = httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(api.Server.Close)
	return api
}

// URL returns the API root with a trailing slash
func (a *FakeAPI) URL() string {
	return a.Server.URL + "/"
}

// Set serves doc as JSON for GET path
func (a *FakeAPI) Set(path string, doc interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs[clean(path)] = doc
}

// Fail answers path with status
func (a *FakeAPI) Fail(path string, status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[clean(path)] = status
}

// Hold blocks responses for path until the returned function is called
func (a *FakeAPI) Hold(path string) (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.gates[clean(path)] = gate
	a.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Submissions returns the recorded POST payloads
func (a *FakeAPI) Submissions() []Submission {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Submission(nil), a.submissions...)
}

// Hits returns how many requests reached path
func (a *FakeAPI) Hits(path string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hits[clean(path)]
}

func (a *FakeAPI) serve(w http.ResponseWriter, r *http.Request) {
	path := clean(r.URL.Path)

	a.mu.Lock()
	a.hits[path]++
	gate := a.gates[path]
	delete(a.gates, path)
	status, failing := a.statuses[path]
	doc, found := a.docs[path]
	a.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if failing {
		http.Error(w, http.StatusText(status), status)
		return
	}

	if r.Method == http.MethodPost {
		data, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = jsonpool.Unmarshal(data, &body)
		a.mu.Lock()
		a.submissions = append(a.submissions, Submission{Path: path, Body: body})
		a.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true}`)
		return
	}

	if !found {
		http.NotFound(w, r)
		return
	}
	data, err := jsonpool.Marshal(doc)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func clean(path string) string {
	return strings.Trim(path, "/")
}
