package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckAllowsUpToLimit(t *testing.T) {
	l := New(3, time.Minute)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		r := l.Check("client-a")
		if !r.Allowed {
			t.Fatalf("request %d expected allowed, got %+v", i, r)
		}
	}
	r := l.Check("client-a")
	if r.Allowed {
		t.Fatalf("4th request expected denied, got %+v", r)
	}
}

func TestCheckIsolatesKeys(t *testing.T) {
	l := New(1, time.Minute)
	defer l.Stop()

	if !l.Check("a").Allowed {
		t.Fatal("expected first request for key a to be allowed")
	}
	if !l.Check("b").Allowed {
		t.Fatal("expected first request for key b to be allowed (separate bucket)")
	}
	if l.Check("a").Allowed {
		t.Fatal("expected second request for key a to be denied")
	}
}

func TestCheckResetsAfterWindow(t *testing.T) {
	l := New(1, 20*time.Millisecond)
	defer l.Stop()

	if !l.Check("a").Allowed {
		t.Fatal("expected first request to be allowed")
	}
	if l.Check("a").Allowed {
		t.Fatal("expected second request within window to be denied")
	}

	time.Sleep(30 * time.Millisecond)
	if !l.Check("a").Allowed {
		t.Fatal("expected request after window reset to be allowed")
	}
}

func TestClientIPPriority(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"vercel wins", map[string]string{"x-vercel-forwarded-for": "1.1.1.1", "x-real-ip": "2.2.2.2"}, "1.1.1.1"},
		{"real-ip next", map[string]string{"x-real-ip": "2.2.2.2", "cf-connecting-ip": "3.3.3.3"}, "2.2.2.2"},
		{"cf-connecting-ip next", map[string]string{"cf-connecting-ip": "3.3.3.3", "x-forwarded-for": "4.4.4.4"}, "3.3.3.3"},
		{"forwarded-for last element", map[string]string{"x-forwarded-for": "4.4.4.4, 5.5.5.5"}, "5.5.5.5"},
		{"fallback loopback", map[string]string{}, "127.0.0.1"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			got := ClientIP(req)
			if got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
