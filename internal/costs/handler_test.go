package costs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(NewService()).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func TestHandlerPutAndGetCosts(t *testing.T) {
	router := newTestRouter()

	payload := bytes.NewBufferString(`{"monthly_cost": 110}`)
	req := httptest.NewRequest(http.MethodPut, "/api/v1/license/costs/itil", payload)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/license/costs", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	var body struct {
		Costs     map[string]float64 `json:"costs"`
		Overrides map[string]float64 `json:"overrides"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Costs["itil"] != 110 {
		t.Fatalf("effective itil = %v, want 110", body.Costs["itil"])
	}
	if body.Costs["admin"] != 150 {
		t.Fatalf("default admin = %v, want 150", body.Costs["admin"])
	}
	if len(body.Overrides) != 1 {
		t.Fatalf("overrides = %v, want only itil", body.Overrides)
	}
}

func TestHandlerPutCostValidation(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		name string
		body string
	}{
		{name: "missing cost", body: `{}`},
		{name: "negative cost", body: `{"monthly_cost": -1}`},
		{name: "not json", body: `nope`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/v1/license/costs/itil", bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}
