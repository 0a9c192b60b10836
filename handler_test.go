package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgtype"

	"lg/life-dashboard-api/internal/cache"
	"lg/life-dashboard-api/internal/identity"
	"lg/life-dashboard-api/internal/recurrence"
)

// fixedNow is 2026-10-16 20:30 UTC, already the 17th in UTC+6.
var fixedNow = time.Date(2026, 10, 16, 20, 30, 0, 0, time.UTC)

// newTestHandler returns a handler with no database; only code paths that
// finish before touching the DB can be exercised with it.
func newTestHandler() *Handler {
	gin.SetMode(gin.TestMode)
	return &Handler{
		loc:    time.FixedZone("UTC+6", 6*3600),
		now:    func() time.Time { return fixedNow },
		codes:  cache.New(nil),
		google: identity.NewGoogleClient(""),
	}
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("failed to parse response %q: %v", w.Body.String(), err)
	}
	return m
}

/* ─── Helpers ────────────────────────────────────────────────────────── */

func TestToday_UsesConfiguredZone(t *testing.T) {
	h := newTestHandler()
	want := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	if got := h.today(); !got.Equal(want) {
		t.Errorf("today() = %v, want %v", got, want)
	}

	h.loc = nil
	want = time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	if got := h.today(); !got.Equal(want) {
		t.Errorf("today() without zone = %v, want %v", got, want)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"09:30", "09:30:00", false},
		{"23:59:59", "23:59:59", false},
		{"7:05", "", true},
		{"24:00", "", true},
		{"noon", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := parseClock(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseClock(%q) = %q, %v; want %q, err=%v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestClockTime_ScanTime(t *testing.T) {
	var ct ClockTime
	if err := ct.ScanTime(pgtype.Time{Microseconds: (9*3600 + 5*60 + 7) * 1_000_000, Valid: true}); err != nil {
		t.Fatal(err)
	}
	if ct != "09:05:07" {
		t.Errorf("ClockTime = %q, want 09:05:07", ct)
	}
	if err := ct.ScanTime(pgtype.Time{}); err != nil || ct != "" {
		t.Errorf("NULL scan = %q, %v; want empty", ct, err)
	}
}

func TestDateOnly_JSON(t *testing.T) {
	d := DateOnly{time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)}
	b, err := json.Marshal(d)
	if err != nil || string(b) != `"2026-02-03"` {
		t.Fatalf("Marshal = %s, %v", b, err)
	}
	var back DateOnly
	if err := json.Unmarshal(b, &back); err != nil || !back.Equal(d.Time) {
		t.Fatalf("Unmarshal = %v, %v", back, err)
	}
	if err := json.Unmarshal([]byte(`"03/02/2026"`), &back); err == nil {
		t.Error("expected an error for a non-ISO date")
	}
}

func TestMondayOf(t *testing.T) {
	monday := time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)
	for i := range 7 {
		d := monday.AddDate(0, 0, i)
		if got := mondayOf(d); !got.Equal(monday) {
			t.Errorf("mondayOf(%s) = %s, want %s", d.Weekday(), got.Format("2006-01-02"), monday.Format("2006-01-02"))
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct{ done, total, want int }{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{4, 4, 100},
	}
	for _, tt := range tests {
		if got := percent(tt.done, tt.total); got != tt.want {
			t.Errorf("percent(%d, %d) = %d, want %d", tt.done, tt.total, got, tt.want)
		}
	}
}

func TestParseMonthFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query      string
		start, end string
		ok         bool
	}{
		{"", "", "", true},
		{"month=2026-02", "2026-02-01", "2026-02-28", true},
		{"month=2024-02", "2024-02-01", "2024-02-29", true},
		{"month=2026-13", "", "", false},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/?"+tt.query, nil)
		start, end, ok := parseMonthFilter(c)
		if start != tt.start || end != tt.end || ok != tt.ok {
			t.Errorf("parseMonthFilter(%q) = %q, %q, %v", tt.query, start, end, ok)
		}
		if !ok && w.Code != http.StatusBadRequest {
			t.Errorf("%q: expected 400, got %d", tt.query, w.Code)
		}
	}
}

func TestParseYearMonth(t *testing.T) {
	h := newTestHandler()
	tests := []struct {
		query string
		year  int
		month time.Month
		ok    bool
	}{
		{"", 2026, time.October, true},
		{"year=2025&month=2", 2025, time.February, true},
		{"month=0", 0, 0, false},
		{"year=abc", 0, 0, false},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest("GET", "/?"+tt.query, nil)
		y, m, ok := h.parseYearMonth(c)
		if y != tt.year || m != tt.month || ok != tt.ok {
			t.Errorf("parseYearMonth(%q) = %d, %v, %v", tt.query, y, m, ok)
		}
	}
}

func TestReturnedDate(t *testing.T) {
	h := newTestHandler()
	if got := h.returnedDate(false, "2026-01-01"); got != nil {
		t.Errorf("outstanding obligation got returned_date %q", *got)
	}
	if got := h.returnedDate(true, ""); got == nil || *got != "2026-10-17" {
		t.Errorf("returned without date = %v, want today", got)
	}
	if got := h.returnedDate(true, "2026-09-30"); got == nil || *got != "2026-09-30" {
		t.Errorf("returned with date = %v", got)
	}
}

func TestPlanKindSQL(t *testing.T) {
	if !strings.Contains(yearlyPlans.selectSQL(), "NULL::int AS month") {
		t.Error("yearly plans should select a NULL month")
	}
	if !strings.Contains(monthlyPlans.selectSQL(), " month,") || strings.Contains(monthlyPlans.selectSQL(), "NULL::int") {
		t.Error("monthly plans should select the month column")
	}
}

func TestTaskJSON(t *testing.T) {
	tpl := 4
	r := taskJSON(recurrence.Task{ID: 9, Title: "Read", Date: fixedNow, Priority: recurrence.High, Recurrence: recurrence.Daily, TemplateID: &tpl})
	if r.ScheduledTime != nil {
		t.Errorf("unscheduled task should render scheduled_time null, got %q", *r.ScheduledTime)
	}
	b, _ := json.Marshal(r)
	for _, want := range []string{`"scheduled_time":null`, `"date":"2026-10-16"`, `"template_id":4`, `"priority":"high"`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("task JSON %s missing %s", b, want)
		}
	}

	r = taskJSON(recurrence.Task{ScheduledTime: "07:00:00"})
	if r.ScheduledTime == nil || *r.ScheduledTime != "07:00:00" {
		t.Errorf("scheduled_time = %v", r.ScheduledTime)
	}
}

/* ─── Validation ─────────────────────────────────────────────────────── */

func TestBindJSON_ReportsFieldsByJSONName(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/tasks", func(c *gin.Context) {
		var body taskRequest
		if bindJSON(c, &body) {
			c.JSON(http.StatusOK, body)
		}
	})

	w := doJSON(router, "POST", "/tasks", `{"scheduled_time":"25:00","date":"2026-13-01","priority":"urgent"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeBody(t, w)
	if resp["error"] != "validation failed" {
		t.Errorf("error = %v", resp["error"])
	}
	fields, _ := resp["fields"].(map[string]any)
	for _, f := range []string{"title", "scheduled_time", "date", "priority"} {
		if _, ok := fields[f]; !ok {
			t.Errorf("fields missing %q: %v", f, fields)
		}
	}

	w = doJSON(router, "POST", "/tasks", `{"title":"Gym","scheduled_time":"06:30","date":"2026-10-16"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(router, "POST", "/tasks", `{"title":`)
	if w.Code != http.StatusBadRequest || decodeBody(t, w)["error"] != "invalid request body" {
		t.Errorf("malformed JSON: %d %s", w.Code, w.Body.String())
	}
}

func TestBindJSON_DecimalAmounts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/entries", func(c *gin.Context) {
		var body entryRequest
		if bindJSON(c, &body) {
			c.JSON(http.StatusOK, gin.H{"amount": body.Amount.Round(2)})
		}
	})

	tests := []struct {
		body string
		code int
	}{
		{`{"description":"Salary","amount":"1500.50","date":"2026-10-01"}`, http.StatusOK},
		{`{"description":"Salary","amount":1500.5,"date":"2026-10-01"}`, http.StatusOK},
		{`{"description":"Salary","amount":0,"date":"2026-10-01"}`, http.StatusBadRequest},
		{`{"description":"Salary","amount":"-3","date":"2026-10-01"}`, http.StatusBadRequest},
		{`{"description":"Salary","date":"2026-10-01"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := doJSON(router, "POST", "/entries", tt.body)
		if w.Code != tt.code {
			t.Errorf("%s: expected %d, got %d: %s", tt.body, tt.code, w.Code, w.Body.String())
		}
	}
}

func TestValidateStruct_NutritionProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mult := 1.6
	age := 30
	tests := []struct {
		name   string
		p      nutritionProfile
		fields []string
	}{
		{"valid", nutritionProfile{Sex: "male", AgeYears: &age, HeightCM: 180, WeightKG: 80, ActivityLevel: "moderate"}, nil},
		{"custom needs multiplier", nutritionProfile{Sex: "male", AgeYears: &age, HeightCM: 180, WeightKG: 80, ActivityLevel: "custom"}, []string{"activity_multiplier"}},
		{"custom with multiplier", nutritionProfile{Sex: "female", AgeYears: &age, HeightCM: 165, WeightKG: 60, ActivityLevel: "custom", ActivityMultiplier: &mult}, nil},
		{"no age source", nutritionProfile{Sex: "female", HeightCM: 165, WeightKG: 60, ActivityLevel: "light"}, []string{"birth_date"}},
		{"empty", nutritionProfile{}, []string{"sex", "height_cm", "weight_kg", "activity_level"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			ok := validateStruct(c, &tt.p)
			if ok != (len(tt.fields) == 0) {
				t.Fatalf("validateStruct = %v: %s", ok, w.Body.String())
			}
			if ok {
				return
			}
			fields, _ := decodeBody(t, w)["fields"].(map[string]any)
			for _, f := range tt.fields {
				if _, found := fields[f]; !found {
					t.Errorf("fields missing %q: %v", f, fields)
				}
			}
		})
	}
}

func TestBindOptionalJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/adjust", func(c *gin.Context) {
		var body struct {
			Apply *bool `json:"apply"`
		}
		if bindOptionalJSON(c, &body) {
			c.JSON(http.StatusOK, gin.H{"apply": body.Apply == nil || *body.Apply})
		}
	})

	w := doJSON(router, "POST", "/adjust", "")
	if w.Code != http.StatusOK || decodeBody(t, w)["apply"] != true {
		t.Errorf("empty body: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(router, "POST", "/adjust", `{"apply":false}`)
	if w.Code != http.StatusOK || decodeBody(t, w)["apply"] != false {
		t.Errorf("apply=false: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(router, "POST", "/adjust", `{"apply":`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestDeleteRow_InvalidID(t *testing.T) {
	h := newTestHandler()
	router := gin.New()
	router.DELETE("/things/:id", h.deleteRow("food_items"))

	for _, id := range []string{"abc", "0", "-4"} {
		w := doJSON(router, "DELETE", "/things/"+id, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("id %q: expected 400, got %d", id, w.Code)
		}
	}
}

/* ─── Middleware ─────────────────────────────────────────────────────── */

func TestOwnerGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", 7)
		c.Next()
	}, ownerGuard())
	router.POST("/echo", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(b))
	})

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"no user_id", "/echo", `{"title":"x"}`, http.StatusOK},
		{"matching query", "/echo?user_id=7", "", http.StatusOK},
		{"other user in query", "/echo?user_id=8", "", http.StatusForbidden},
		{"matching body number", "/echo", `{"user_id":7}`, http.StatusOK},
		{"matching body string", "/echo", `{"user_id":"7"}`, http.StatusOK},
		{"other user in body", "/echo", `{"user_id":8,"title":"x"}`, http.StatusForbidden},
		{"nested user_id ignored", "/echo", `{"data":{"user_id":8}}`, http.StatusOK},
		{"matching user field", "/echo", `{"user":7,"title":"x"}`, http.StatusOK},
		{"other user in user field", "/echo", `{"user":8,"title":"x"}`, http.StatusForbidden},
		{"other user in user query", "/echo?user=8", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(router, "POST", tt.path, tt.body)
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			if tt.code == http.StatusOK && w.Body.String() != tt.body {
				t.Errorf("handler saw body %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	h := newTestHandler()
	router := gin.New()
	router.GET("/private", h.authMiddleware(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for _, header := range []string{"", "Token abc", "Bearer "} {
		req := httptest.NewRequest("GET", "/private", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Authorization %q: expected 401, got %d", header, w.Code)
		}
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(cors([]string{"https://app.example.com"}))
	router.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allowed origin header = %q", got)
	}

	req = httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin got header %q", got)
	}

	req = httptest.NewRequest("OPTIONS", "/api/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight: expected 204, got %d", w.Code)
	}
}

func TestSameUser(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`7`, true},
		{`"7"`, true},
		{`7.0`, true},
		{`8`, false},
		{`"seven"`, false},
		{`null`, false},
	}
	for _, tt := range tests {
		if got := sameUser(json.RawMessage(tt.raw), 7); got != tt.want {
			t.Errorf("sameUser(%s) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
