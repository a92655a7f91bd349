package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", "tok")
}

func TestMeSendsBearerToken(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/me" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = w.Write([]byte(`{"id":1,"username":"alice","display_name":"Alice","status":"online"}`))
	})

	u, err := c.Me(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "1" || u.DisplayName != "Alice" {
		t.Errorf("user = %+v", u)
	}
}

func TestDirectHistoryQuery(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sender_id") != "1" || q.Get("receiver_id") != "2" || q.Get("limit") != "50" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`[{"id":5,"sender_id":1,"receiver_id":2,"content":"hey","timestamp":"2024-01-01T10:00:00"}]`))
	})

	msgs, err := c.DirectHistory(context.Background(), "1", "2", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ID != "5" || msgs[0].Content != "hey" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestGroupHistoryPath(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups/9/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want empty", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[]`))
	})

	msgs, err := c.GroupHistory(context.Background(), "9", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("len = %d", len(msgs))
	}
}

func TestConversations(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"type":"user","id":2,"last_message":"hi","last_ts":"2024-01-01T10:00:00","display_name":"Bob"},
			{"type":"group","id":"9","last_message":"yo","last_ts":"2024-01-01T09:00:00","group_name":"Team"}
		]`))
	})

	got, err := c.Conversations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].DisplayName != "Bob" || got[1].GroupName != "Team" || got[1].ID != "9" {
		t.Errorf("summaries = %+v", got)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name  string
		code  int
		check func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, func(t *testing.T, err error) {
			if !errors.Is(err, ErrUnauthorized) {
				t.Errorf("err = %v, want ErrUnauthorized", err)
			}
		}},
		{"not found", http.StatusNotFound, func(t *testing.T, err error) {
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("err = %v, want *StatusError", err)
			}
			if se.Code != http.StatusNotFound || se.Body != `{"error":"nope"}` {
				t.Errorf("status error = %+v", se)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})
			_, err := c.Friends(context.Background())
			tt.check(t, err)
		})
	}
}

func TestAcceptPosts(t *testing.T) {
	var method, path string
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.Accept(context.Background(), "7"); err != nil {
		t.Fatal(err)
	}
	if method != http.MethodPost || path != "/users/7/accept" {
		t.Errorf("request = %s %s", method, path)
	}
	if err := c.Reject(context.Background(), "7"); err != nil {
		t.Fatal(err)
	}
	if path != "/users/7/reject" {
		t.Errorf("path = %s", path)
	}
}

func TestDecodeError(t *testing.T) {
	c := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	if _, err := c.FriendRequests(context.Background()); err == nil {
		t.Error("expected decode error")
	}
}
