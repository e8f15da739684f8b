package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// NetoOrder is the raw order shape returned by the mock order API.
type NetoOrder struct {
	DatePlaced string          `json:"DatePlaced"`
	OrderLine  []NetoOrderLine `json:"OrderLine"`
	BillCity   string          `json:"BillCity"`
}

// NetoOrderLine is a single line item in a mock order.
type NetoOrderLine struct {
	SKU         string `json:"SKU"`
	ProductName string `json:"ProductName"`
}

// MockNetoServer provides a configurable mock Neto order API server for testing.
type MockNetoServer struct {
	Server        *httptest.Server
	Orders        []NetoOrder    // Orders to return from GetOrder
	StatusCode    int            // HTTP status code to return (200 if not set)
	RawBody       string         // Overrides the JSON response body when set
	RequestCount  int            // Number of requests received
	LastAccessKey string         // Captured X_ACCESS_KEY header from last request
	LastSecretKey string         // Captured X_SECRET_KEY header from last request
	LastAction    string         // Captured NETOAPI_ACTION header from last request
	LastFilter    map[string]any // Captured Filter object from last request body
}

// SetupMockNetoServer creates a mock Neto API server that handles GetOrder
// requests. Returns a MockNetoServer with configurable response values and
// request tracking.
func SetupMockNetoServer(t *testing.T) *MockNetoServer {
	t.Helper()

	mock := &MockNetoServer{
		StatusCode: http.StatusOK,
	}

	router := http.NewServeMux()

	router.HandleFunc("POST /do/WS/NetoAPI", func(w http.ResponseWriter, r *http.Request) {
		mock.RequestCount++
		mock.LastAccessKey = r.Header.Get("X_ACCESS_KEY")
		mock.LastSecretKey = r.Header.Get("X_SECRET_KEY")
		mock.LastAction = r.Header.Get("NETOAPI_ACTION")

		var body struct {
			Filter map[string]any `json:"Filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			mock.LastFilter = body.Filter
		}

		if mock.StatusCode != http.StatusOK {
			w.WriteHeader(mock.StatusCode)
			return
		}

		if mock.RawBody != "" {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, mock.RawBody)
			return
		}

		response := struct {
			Order []NetoOrder `json:"Order"`
		}{
			Order: mock.Orders,
		}

		WriteJSON(w, response)
	})

	mock.Server = httptest.NewServer(router)
	t.Cleanup(mock.Server.Close)
	return mock
}

// URL returns the mock server's order API endpoint.
func (m *MockNetoServer) URL() string {
	return m.Server.URL + "/do/WS/NetoAPI"
}

// WriteJSON is a helper function that writes a JSON response.
// It sets the Content-Type header and marshals the payload to JSON.
func WriteJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(payload)
	if err != nil {
		// In test context, this should never happen with valid test data
		http.Error(w, fmt.Sprintf("failed to marshal JSON: %v", err), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
}
