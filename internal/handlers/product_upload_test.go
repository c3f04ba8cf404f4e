package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func multipartContext(t *testing.T, fill func(w *multipart.Writer)) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fill(writer)
	_ = writer.Close()

	req := httptest.NewRequest("PUT", "/api/v1/admin/products/1", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = req
	return c
}

func TestParseMultipartProductRequest_PicksLastIsActiveValue(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		_ = w.WriteField("isActive", "false")
		_ = w.WriteField("isActive", "true")
		_ = w.WriteField("priceMin", "99")
		_ = w.WriteField("priceMax", "149.5")
	})

	parsed, err := parseMultipartProductRequest(c)
	if err != nil {
		t.Fatalf("parseMultipartProductRequest returned error: %v", err)
	}
	if !parsed.IsActiveSet || !parsed.IsActive {
		t.Fatalf("expected isActive=true, got %+v", parsed)
	}
	if !parsed.PriceMinSet || parsed.PriceMin != 99 {
		t.Fatalf("expected priceMin=99, got %+v", parsed)
	}
	if !parsed.PriceMaxSet || parsed.PriceMax != 149.5 {
		t.Fatalf("expected priceMax=149.5, got %+v", parsed)
	}
	if parsed.NameSet || parsed.CategoryIDSet {
		t.Fatalf("unexpected fields marked as set: %+v", parsed)
	}
}

func TestParseMultipartProductRequest_Tags(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		_ = w.WriteField("tags[]", "Steel")
		_ = w.WriteField("tags[]", " steel ")
		_ = w.WriteField("tags", "rebar,TMT")
	})

	parsed, err := parseMultipartProductRequest(c)
	if err != nil {
		t.Fatalf("parseMultipartProductRequest returned error: %v", err)
	}
	if !parsed.TagsSet {
		t.Fatalf("expected tags to be set")
	}
	want := []string{"Steel", "rebar", "TMT"}
	if len(parsed.Tags) != len(want) {
		t.Fatalf("expected tags %v, got %v", want, parsed.Tags)
	}
	for i := range want {
		if parsed.Tags[i] != want[i] {
			t.Fatalf("expected tags %v, got %v", want, parsed.Tags)
		}
	}
}

func TestParseMultipartProductRequest_RejectsBadNumbers(t *testing.T) {
	cases := map[string]string{
		"categoryId":    "0",
		"subcategoryId": "abc",
		"minQty":        "-1",
		"priceMin":      "cheap",
	}
	for field, value := range cases {
		c := multipartContext(t, func(w *multipart.Writer) {
			_ = w.WriteField(field, value)
		})
		if _, err := parseMultipartProductRequest(c); err == nil {
			t.Fatalf("expected error for %s=%q", field, value)
		}
	}
}

func TestParseMultipartProductRequest_RejectsUnsupportedImage(t *testing.T) {
	c := multipartContext(t, func(w *multipart.Writer) {
		part, _ := w.CreateFormFile("image", "brochure.pdf")
		_, _ = part.Write([]byte("%PDF-1.4"))
	})

	if _, err := parseMultipartProductRequest(c); err == nil {
		t.Fatalf("expected error for a pdf upload")
	}
}

func TestResolvePriceRange(t *testing.T) {
	min, max := 10.0, 20.0

	gotMin, gotMax, err := resolvePriceRange(5, 50, priceRangeInput{Min: &min})
	if err != nil || gotMin != 10 || gotMax != 50 {
		t.Fatalf("expected 10-50, got %v-%v (%v)", gotMin, gotMax, err)
	}

	if _, _, err := resolvePriceRange(30, 0, priceRangeInput{Max: &max}); err == nil {
		t.Fatalf("expected error when priceMax < priceMin")
	}

	negative := -1.0
	if _, _, err := resolvePriceRange(0, 0, priceRangeInput{Min: &negative}); err == nil {
		t.Fatalf("expected error for negative priceMin")
	}
}

func TestPriceLabel(t *testing.T) {
	cases := []struct {
		min, max float64
		want     string
	}{
		{0, 0, "Price on request"},
		{250, 0, "₹250.00"},
		{250, 250, "₹250.00"},
		{0, 90, "Up to ₹90.00"},
		{10, 12.5, "₹10.00 - ₹12.50"},
	}
	for _, tc := range cases {
		if got := priceLabel(tc.min, tc.max); got != tc.want {
			t.Fatalf("priceLabel(%v, %v) = %q, want %q", tc.min, tc.max, got, tc.want)
		}
	}
}
