package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

// decodeData decodes a recorded JSON response body into v.
func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response body %q: %v", w.Body.String(), err)
	}
}
