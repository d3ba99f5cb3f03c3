package graph

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPagingAfter(t *testing.T) {
	tests := []struct {
		name   string
		paging *Paging
		want   string
	}{
		{"nil paging", nil, ""},
		{"no next means exhausted", &Paging{Cursors: struct {
			Before string `json:"before"`
			After  string `json:"after"`
		}{After: "cur"}}, ""},
		{"next present", &Paging{Cursors: struct {
			Before string `json:"before"`
			After  string `json:"after"`
		}{After: "cur"}, Next: "https://example.invalid/next"}, "cur"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.paging.After(); got != tt.want {
				t.Errorf("After() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDoJSON_ParsesProviderErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {
			"message": "Invalid OAuth access token",
			"type": "OAuthException",
			"code": 190,
			"error_subcode": 463,
			"fbtrace_id": "AbCdEf"
		}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	_, err := client.GetUserProfile(context.Background(), "bad-token", "user_1")

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T (%v)", err, err)
	}
	if provErr.Status != http.StatusBadRequest || provErr.Code != 190 || provErr.Subcode != 463 {
		t.Fatalf("unexpected parse: %+v", provErr)
	}
	if !provErr.IsAuthError() {
		t.Error("code 190 must classify as auth error")
	}
	if provErr.IsPermissionError() || provErr.IsRateLimited() {
		t.Error("code 190 must not classify as permission or rate limit")
	}
}

func TestDoJSON_UnparseableErrorBodyKeepsRawText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream exploded"))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	_, err := client.GetUserProfile(context.Background(), "tok", "user_1")

	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected *ProviderError, got %T", err)
	}
	if provErr.Message != "upstream exploded" {
		t.Fatalf("raw body lost: %+v", provErr)
	}
}

func TestListMedia_RequestShape(t *testing.T) {
	var gotPath, gotFields, gotAfter, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFields = r.URL.Query().Get("fields")
		gotAfter = r.URL.Query().Get("after")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL(server.URL)
	_, err := client.ListMedia(context.Background(), "tok", "ig_self", PageOptions{After: "cur9", CommentLimit: 7, ReplyLimit: 3})
	if err != nil {
		t.Fatalf("ListMedia failed: %v", err)
	}

	if gotPath != "/ig_self/media" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAfter != "cur9" {
		t.Errorf("after = %q, want cur9", gotAfter)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("auth header = %q", gotAuth)
	}
	// Nested expansion must carry both custom limits.
	for _, want := range []string{"comments.limit(7)", "replies.limit(3)"} {
		if !strings.Contains(gotFields, want) {
			t.Errorf("fields %q missing %q", gotFields, want)
		}
	}
}
