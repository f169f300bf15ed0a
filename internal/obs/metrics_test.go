package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                    "/",
		"/metrics":                            "/metrics",
		"/v1/books":                           "/v1/books",
		"/v1/books/01ABC":                     "/v1/books/:id",
		"/v1/books/01ABC/buy":                 "/v1/books/:id/buy",
		"/v1/content/01ABC":                   "/v1/content/:id",
		"/v1/content/01ABC/token":             "/v1/content/:id/token",
		"/v1/content/by-token/deadbeef":       "/v1/content/by-token/:token",
		"/v1/purchases":                       "/v1/purchases",
		"/v1/purchases?limit=10":              "/v1/purchases",
		"/v1/admin/books/01ABC":               "/v1/admin/books/:id",
		"/v1/admin/orders/01ABC/status":       "/v1/admin/orders/:id/status",
		"/v1/admin/orders":                    "/v1/admin/orders",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
