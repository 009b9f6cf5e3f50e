package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/goleak"

	"github.com/mr1hm/fixr/internal/draft"
	"github.com/mr1hm/fixr/internal/feed"
	"github.com/mr1hm/fixr/internal/geo"
	"github.com/mr1hm/fixr/internal/models"
	"github.com/mr1hm/fixr/internal/ratelimit"
	"github.com/mr1hm/fixr/internal/repository"
	"github.com/mr1hm/fixr/internal/service"
	"github.com/mr1hm/fixr/internal/share"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var testNow = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

// mockRepo implements repository.ReportRepository for testing
type mockRepo struct {
	reports []models.Report
	err     error
}

func (m *mockRepo) Add(ctx context.Context, r *models.Report) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	r.ID = primitive.NewObjectID().Hex()
	m.reports = append(m.reports, *r)
	return r.ID, nil
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*models.Report, error) {
	for _, r := range m.reports {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *mockRepo) ListReports(ctx context.Context, opts repository.Filter) ([]models.Report, error) {
	if m.err != nil {
		return nil, m.err
	}

	var results []models.Report
	for _, r := range m.reports {
		if opts.Bounds != nil && !geo.Contains(*opts.Bounds, r.Location) {
			continue
		}
		if opts.Type != nil && r.IssueType != *opts.Type {
			continue
		}
		if opts.Since != nil && r.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.OmitDescriptions {
			r.DescriptionUser = ""
			r.DescriptionFinal = ""
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	// Apply limit
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	return results, nil
}

func (m *mockRepo) DeleteSeeded(ctx context.Context, marker string) (int64, error) {
	return 0, nil
}

func (m *mockRepo) Close() error {
	return nil
}

func (m *mockRepo) seed(issue models.IssueType, lng, lat float64, age time.Duration) string {
	created := testNow.Add(-age)
	id := primitive.NewObjectID().Hex()
	m.reports = append(m.reports, models.Report{
		ID:               id,
		IssueType:        issue,
		Severity:         models.SeverityMedium,
		DescriptionUser:  "user text",
		DescriptionFinal: "final text",
		Location:         geo.ToGeoPoint(lng, lat),
		Photo:            models.DefaultPhoto,
		CreatedAt:        created,
		UpdatedAt:        created,
	})
	return id
}

type testEnv struct {
	router      *gin.Engine
	repo        *mockRepo
	broadcaster *feed.Broadcaster
}

func setupTestRouter(t *testing.T, baseURL string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := &mockRepo{}
	clock := func() time.Time { return testNow }
	broadcaster := feed.NewBroadcaster()
	t.Cleanup(broadcaster.Close)

	gen := draft.NewGenerator(nil, 0)
	svc := service.New(repo, gen, ratelimit.New(10, 10*time.Minute, clock), broadcaster, service.Config{
		PublicBaseURL: baseURL,
		Clock:         clock,
	})

	router := gin.New()
	router.Use(RequestID(nil))
	handler := NewHandler(svc, gen, broadcaster, share.NewQRCoder(128, "M"))
	handler.RegisterRoutes(router)

	return &testEnv{router: router, repo: repo, broadcaster: broadcaster}
}

func doRequest(router *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestCreateReport_EndToEnd(t *testing.T) {
	env := setupTestRouter(t, "")

	body := `{"issueType":"pothole","severity":"high","descriptionUser":"deep pothole","location":{"lat":37.80,"lng":-122.27},"approxLocation":true}`
	w := doRequest(env.router, http.MethodPost, "/reports", body, nil)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		ID       string         `json:"id"`
		ShareURL string         `json:"shareUrl"`
		Report   map[string]any `json:"report"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if resp.ShareURL != "/r/"+resp.ID {
		t.Errorf("unexpected share url %q", resp.ShareURL)
	}

	loc := resp.Report["location"].(map[string]any)
	if loc["lng"] != -122.27 || loc["lat"] != 37.8 {
		t.Errorf("expected rounded location, got %v", loc)
	}

	desc := resp.Report["descriptionFinal"].(string)
	if !strings.Contains(desc, "pothole") || !strings.Contains(desc, "Location was rounded for privacy") {
		t.Errorf("unexpected descriptionFinal %q", desc)
	}

	photo := resp.Report["photo"].(map[string]any)
	if photo["url"] != nil || photo["stored"] != false {
		t.Errorf("expected empty photo placeholder, got %v", photo)
	}

	if w.Header().Get(HeaderXRequestID) == "" {
		t.Error("expected a request id header")
	}
}

func TestCreateReport_ValidationError(t *testing.T) {
	env := setupTestRouter(t, "")

	w := doRequest(env.router, http.MethodPost, "/reports",
		`{"issueType":"pothole","severity":"high","location":{"lat":91,"lng":0}}`, nil)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "lat must be between -90 and 90" {
		t.Errorf("unexpected error %q", resp["error"])
	}
}

func TestCreateReport_InvalidJSON(t *testing.T) {
	env := setupTestRouter(t, "")

	w := doRequest(env.router, http.MethodPost, "/reports", `{oops`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Invalid JSON") {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestCreateReport_RateLimited(t *testing.T) {
	env := setupTestRouter(t, "")
	body := `{"issueType":"other","severity":"low","location":{"lat":1,"lng":1}}`
	headers := map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}

	for i := 0; i < 10; i++ {
		if w := doRequest(env.router, http.MethodPost, "/reports", body, headers); w.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i+1, w.Code)
		}
	}

	w := doRequest(env.router, http.MethodPost, "/reports", body, headers)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "600" {
		t.Errorf("expected Retry-After 600, got %q", got)
	}

	// A different caller is unaffected.
	w = doRequest(env.router, http.MethodPost, "/reports", body, map[string]string{"X-Real-IP": "198.51.100.4"})
	if w.Code != http.StatusCreated {
		t.Errorf("expected 201 for another caller, got %d", w.Code)
	}
}

func TestCreateReport_OversizedBodyIsAdmissionChecked(t *testing.T) {
	env := setupTestRouter(t, "")
	small := `{"issueType":"other","severity":"low","location":{"lat":1,"lng":1}}`
	oversized := `{"descriptionUser":"` + strings.Repeat("x", 70<<10) + `"}`
	exhausted := map[string]string{"X-Forwarded-For": "9.9.9.9"}

	for i := 0; i < 10; i++ {
		if w := doRequest(env.router, http.MethodPost, "/reports", small, exhausted); w.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i+1, w.Code)
		}
	}

	w := doRequest(env.router, http.MethodPost, "/reports", oversized, exhausted)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected oversized body from exhausted caller to get 429, got %d: %s", w.Code, w.Body.String())
	}

	// Oversized bodies are rejected but still spend quota.
	fresh := map[string]string{"X-Forwarded-For": "9.9.9.10"}
	for i := 0; i < 10; i++ {
		w := doRequest(env.router, http.MethodPost, "/reports", oversized, fresh)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("request %d: expected 400, got %d", i+1, w.Code)
		}
	}
	if w := doRequest(env.router, http.MethodPost, "/reports", small, fresh); w.Code != http.StatusTooManyRequests {
		t.Errorf("expected quota to be spent by oversized bodies, got %d", w.Code)
	}
}

func TestCreateReport_StoreFault(t *testing.T) {
	env := setupTestRouter(t, "")
	env.repo.err = fmt.Errorf("server selection timeout")

	w := doRequest(env.router, http.MethodPost, "/reports",
		`{"issueType":"other","severity":"low","location":{"lat":1,"lng":1}}`, nil)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "server selection") {
		t.Error("store error details leaked to the client")
	}
}

func TestListReports_Listing(t *testing.T) {
	env := setupTestRouter(t, "")

	var recent []string
	for day := 0; day < 40; day += 5 {
		id := env.repo.seed(models.IssueTypePothole, -122.25, 37.75, time.Duration(day)*24*time.Hour+time.Minute)
		if day < 10 {
			recent = append(recent, id)
		}
	}
	env.repo.seed(models.IssueTypePothole, 10, 10, time.Hour)

	w := doRequest(env.router, http.MethodGet, "/reports?bbox=-122.3,37.7,-122.2,37.8&days=10", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if len(resp.Results) != len(recent) {
		t.Fatalf("expected %d pins, got %d", len(recent), len(resp.Results))
	}
	for i, pin := range resp.Results {
		if pin["id"] != recent[i] {
			t.Errorf("pin %d: expected %s, got %v", i, recent[i], pin["id"])
		}
		if _, ok := pin["descriptionFinal"]; ok {
			t.Error("pins must not carry descriptionFinal")
		}
		if _, ok := pin["descriptionUser"]; ok {
			t.Error("pins must not carry descriptionUser")
		}
	}
}

func TestListReports_BadBBox(t *testing.T) {
	env := setupTestRouter(t, "")

	tests := []struct {
		query string
		want  string
	}{
		{"", "bbox is required"},
		{"bbox=10,10,5,5", "bbox bounds are invalid"},
		{"bbox=1,2,3", "bbox must be minLng,minLat,maxLng,maxLat"},
	}

	for _, tt := range tests {
		w := doRequest(env.router, http.MethodGet, "/reports?"+tt.query, "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected status 400, got %d", tt.query, w.Code)
			continue
		}
		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["error"] != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.query, tt.want, resp["error"])
		}
	}
}

func TestListReports_GeoJSON(t *testing.T) {
	env := setupTestRouter(t, "")
	id := env.repo.seed(models.IssueTypeFlooding, -122.25, 37.75, time.Hour)

	w := doRequest(env.router, http.MethodGet, "/reports?bbox=-122.3,37.7,-122.2,37.8&format=geojson", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/geo+json") {
		t.Errorf("expected geo+json content type, got %s", ct)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 {
		t.Fatalf("unexpected collection %+v", fc)
	}
	if fc.Features[0].Properties["id"] != id {
		t.Errorf("expected feature id %s", id)
	}
	if c := fc.Features[0].Geometry.Coordinates; c[0] != -122.25 || c[1] != 37.75 {
		t.Errorf("expected lng-first coordinates, got %v", c)
	}
}

func TestGetReport(t *testing.T) {
	env := setupTestRouter(t, "https://fixr.example.org")
	id := env.repo.seed(models.IssueTypeOther, 1, 1, time.Hour)

	w := doRequest(env.router, http.MethodGet, "/reports/"+id, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["descriptionFinal"] != "final text" {
		t.Errorf("expected full report, got %v", resp)
	}
	if resp["shareUrl"] != "https://fixr.example.org/r/"+id {
		t.Errorf("unexpected share url %v", resp["shareUrl"])
	}
	if !strings.HasPrefix(resp["mailto"].(string), "mailto:?subject=Fixr%20report%3A%20other") {
		t.Errorf("unexpected mailto %v", resp["mailto"])
	}
}

func TestGetReport_Errors(t *testing.T) {
	env := setupTestRouter(t, "")

	w := doRequest(env.router, http.MethodGet, "/reports/not-an-id", "", nil)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "Invalid id") {
		t.Errorf("expected 400 Invalid id, got %d %s", w.Code, w.Body.String())
	}

	w = doRequest(env.router, http.MethodGet, "/reports/"+primitive.NewObjectID().Hex(), "", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "Not found") {
		t.Errorf("expected 404 Not found, got %d %s", w.Code, w.Body.String())
	}
}

func TestGetReportQR(t *testing.T) {
	env := setupTestRouter(t, "")
	id := env.repo.seed(models.IssueTypeOther, 1, 1, time.Hour)

	w := doRequest(env.router, http.MethodGet, "/reports/"+id+"/qr", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if _, err := png.Decode(bytes.NewReader(w.Body.Bytes())); err != nil {
		t.Errorf("expected a valid PNG: %v", err)
	}

	w = doRequest(env.router, http.MethodGet, "/reports/"+primitive.NewObjectID().Hex()+"/qr", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestGenerate_TemplateText(t *testing.T) {
	env := setupTestRouter(t, "")

	w := doRequest(env.router, http.MethodPost, "/generate",
		`{"issueType":"broken_streetlight","severity":"medium","notes":"flickers","location":"Park St","crossStreet":"Clement"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp["source"] != "template" {
		t.Errorf("expected template source, got %v", resp["source"])
	}
	if _, ok := resp["fallbackReason"]; ok {
		t.Error("fallbackReason must be absent without an AI client")
	}
	if _, ok := resp["model"]; ok {
		t.Error("model must be absent for template drafts")
	}
	if _, ok := resp["structured"]; ok {
		t.Error("structured must be absent in text mode")
	}
	if !strings.Contains(resp["draft"].(string), "Location: Park St, near Clement.") {
		t.Errorf("unexpected draft %v", resp["draft"])
	}
}

func TestGenerate_Structured(t *testing.T) {
	env := setupTestRouter(t, "")

	w := doRequest(env.router, http.MethodPost, "/generate",
		`{"issueType":"flooding","severity":"high","descriptionUser":"car trapped in water","mode":"structured","approxLocation":true}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Draft      string            `json:"draft"`
		Structured *draft.Structured `json:"structured"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Structured == nil {
		t.Fatal("expected structured draft")
	}
	if resp.Structured.SafetyNote == "" {
		t.Error("expected a safety note for trapped")
	}
	if len(resp.Structured.Tags) != 3 {
		t.Errorf("expected 3 tags, got %v", resp.Structured.Tags)
	}
}

func TestGenerate_MissingFields(t *testing.T) {
	env := setupTestRouter(t, "")

	w := doRequest(env.router, http.MethodPost, "/generate", `{"issueType":"flooding"}`, nil)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "issueType and severity are required") {
		t.Errorf("expected 400, got %d %s", w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	env := setupTestRouter(t, "")

	w := doRequest(env.router, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestRequestID_Propagates(t *testing.T) {
	env := setupTestRouter(t, "")

	w := doRequest(env.router, http.MethodGet, "/health", "", map[string]string{HeaderXRequestID: "abc-123"})
	if got := w.Header().Get(HeaderXRequestID); got != "abc-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(1))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := doRequest(router, http.MethodGet, "/ping", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", w.Code)
	}
	w := doRequest(router, http.MethodGet, "/ping", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected burst to be limited, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", w.Header().Get("Retry-After"))
	}
}

func TestRateLimitMiddleware_SkipsHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(1))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		if w := doRequest(router, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected health to bypass the limiter, got %d", i, w.Code)
		}
	}
}

func TestStreamReports(t *testing.T) {
	env := setupTestRouter(t, "")
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/reports/stream?bbox=-122.3,37.7,-122.2,37.8", nil)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.broadcaster.SubscriberCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	outside := models.Pin{ID: "outside", Location: models.LngLat{Lng: 10, Lat: 10}}
	inside := models.Pin{ID: "inside", IssueType: models.IssueTypePothole, Location: models.LngLat{Lng: -122.25, Lat: 37.75}}
	env.broadcaster.Broadcast(outside)
	env.broadcaster.Broadcast(inside)

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read stream: %v", err)
		}
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}

	if event != "report" {
		t.Errorf("expected report event, got %q", event)
	}
	if !strings.Contains(data, `"id":"inside"`) {
		t.Errorf("expected the in-bounds pin, got %s", data)
	}

	cancel()
}

func TestStreamReports_BadBBox(t *testing.T) {
	env := setupTestRouter(t, "")

	w := doRequest(env.router, http.MethodGet, "/reports/stream?bbox=1,1,0,0", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}
