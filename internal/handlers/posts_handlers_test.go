package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/garagehub/backend/internal/models"
)

func TestPostsEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	_, authorToken := createTestUser(t, env.db, "posts-author", "0888500001", "password123", models.RoleFrontendUser)
	_, mechToken := createTestUser(t, env.db, "posts-mechanic", "0888500002", "password123", models.RoleMechanic)
	_, strangerToken := createTestUser(t, env.db, "posts-stranger", "0888500003", "password123", models.RoleFrontendUser)

	var postID string

	t.Run("POST /api/posts creates a post", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/posts/", map[string]any{
			"content": "My brakes squeal when cold, any advice?",
		}, authHeaders(authorToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		postID = body["data"].(map[string]any)["id"].(string)
	})

	t.Run("GET /api/posts is public", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/posts", nil, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		posts := body["data"].([]any)
		if len(posts) != 1 {
			t.Fatalf("expected one post in feed, got %d", len(posts))
		}
		entry := posts[0].(map[string]any)
		if entry["commentCount"].(float64) != 0 {
			t.Fatalf("expected zero comments, got %v", entry["commentCount"])
		}
	})

	t.Run("post author can comment", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, fmt.Sprintf("/api/posts/%s/comments", postID), map[string]any{
			"content": "Forgot to mention: only in the morning.",
		}, authHeaders(authorToken))
		assertStatus(t, resp, http.StatusCreated)
	})

	t.Run("mechanic can comment on any post", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, fmt.Sprintf("/api/posts/%s/comments", postID), map[string]any{
			"content": "Sounds like glazed pads, bring it in.",
		}, authHeaders(mechToken))
		assertStatus(t, resp, http.StatusCreated)
	})

	t.Run("unrelated member cannot comment", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, fmt.Sprintf("/api/posts/%s/comments", postID), map[string]any{
			"content": "me too",
		}, authHeaders(strangerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "only the post author or a mechanic can comment")

		var count int64
		if err := env.db.Model(&models.Comment{}).Count(&count).Error; err != nil {
			t.Fatalf("failed counting comments: %v", err)
		}
		if count != 2 {
			t.Fatalf("denied comment must not be written, got %d rows", count)
		}
	})

	t.Run("feed counts comments per post", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/posts/", map[string]any{
			"content": "Open Saturday this week, walk-ins welcome.",
		}, authHeaders(mechToken))
		assertStatus(t, resp, http.StatusCreated)

		resp = performRequest(t, env.app, http.MethodGet, "/api/posts", nil, nil)
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		posts := body["data"].([]any)
		if len(posts) != 2 {
			t.Fatalf("expected two posts in feed, got %d", len(posts))
		}
		for _, raw := range posts {
			entry := raw.(map[string]any)
			want := float64(0)
			if entry["id"].(string) == postID {
				want = 2
			}
			if entry["commentCount"].(float64) != want {
				t.Fatalf("post %v: expected %v comments, got %v", entry["id"], want, entry["commentCount"])
			}
		}
	})

	t.Run("anonymous cannot comment", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, fmt.Sprintf("/api/posts/%s/comments", postID), map[string]any{
			"content": "anon",
		}, nil)
		assertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("GET /api/posts/:id returns the thread with canComment hints", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/posts/"+postID, nil, authHeaders(strangerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)

		data := body["data"].(map[string]any)
		comments := data["comments"].([]any)
		if len(comments) != 2 {
			t.Fatalf("expected two comments, got %d", len(comments))
		}
		if can, _ := data["canComment"].(bool); can {
			t.Fatalf("stranger must see canComment=false")
		}

		authorView := decodeJSONMap(t, performRequest(t, env.app, http.MethodGet, "/api/posts/"+postID, nil, authHeaders(authorToken)))
		if can, _ := authorView["data"].(map[string]any)["canComment"].(bool); !can {
			t.Fatalf("author must see canComment=true")
		}
	})

	t.Run("empty content is rejected", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/posts/", map[string]any{
			"content": "   ",
		}, authHeaders(authorToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "content is required")
	})
}
