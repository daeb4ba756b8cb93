package chatrace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_RequiresURL(t *testing.T) {
	if _, err := NewClient(ClientOpts{}); err == nil {
		t.Fatal("expected error for missing api url")
	}
}

func TestClient_Call(t *testing.T) {
	var gotToken, gotUA string
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-ACCESS-TOKEN")
		gotUA = r.Header.Get("User-Agent")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"data":   []map[string]any{{"ms_id": "1"}},
		})
	}))
	defer srv.Close()

	c, err := NewClient(ClientOpts{APIURL: srv.URL, Token: "tok-1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := c.Call(context.Background(), map[string]any{"op": "conversations", "op1": "get"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	if !resp.OK() {
		t.Errorf("resp.OK() = false, status %q", resp.Status)
	}
	if len(resp.Data) != 1 {
		t.Errorf("got %d data rows, want 1", len(resp.Data))
	}
	if gotToken != "tok-1" {
		t.Errorf("X-ACCESS-TOKEN = %q", gotToken)
	}
	if gotUA != "mobile-app" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotPayload["op"] != "conversations" {
		t.Errorf("payload = %+v", gotPayload)
	}
}

func TestClient_Call_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewClient(ClientOpts{APIURL: srv.URL})
	if _, err := c.Call(context.Background(), map[string]any{"op": "conversations"}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestResponse_OK(t *testing.T) {
	var nilResp *Response
	if nilResp.OK() {
		t.Error("nil response must not be OK")
	}
	if (&Response{Status: "ERROR"}).OK() {
		t.Error("ERROR status must not be OK")
	}
}
