package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/xymail/xymail-backend/pkg/errors"
)

type loginBody struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"password":"short"}`))
	var body loginBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", pkgerrors.As(err).Details())
	}
	if details["username"] != "is required" {
		t.Fatalf("unexpected username detail %q", details["username"])
	}
	if details["password"] != "must be at least 8" {
		t.Fatalf("unexpected password detail %q", details["password"])
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"username":"a","password":"longenough","admin":true}`))
	var body loginBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParsePagination(t *testing.T) {
	params, err := ParsePagination(httptest.NewRequest("GET", "/?page=3&limit=50", nil))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if params.Page != 3 || params.Limit != 50 {
		t.Fatalf("unexpected params %+v", params)
	}

	params, err = ParsePagination(httptest.NewRequest("GET", "/", nil))
	if err != nil || params.Page != 1 || params.Limit != 20 {
		t.Fatalf("unexpected defaults %+v err=%v", params, err)
	}

	if _, err := ParsePagination(httptest.NewRequest("GET", "/?limit=500", nil)); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected out of range limit to fail, got %v", err)
	}
	if _, err := ParsePagination(httptest.NewRequest("GET", "/?page=abc", nil)); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected non-numeric page to fail, got %v", err)
	}
}

func TestParseUUIDQuery(t *testing.T) {
	if _, err := ParseUUIDQuery(httptest.NewRequest("GET", "/", nil), "id"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected missing id to fail, got %v", err)
	}
	if _, err := ParseUUIDQuery(httptest.NewRequest("GET", "/?id=nope", nil), "id"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected malformed id to fail, got %v", err)
	}
	id, err := ParseUUIDQuery(httptest.NewRequest("GET", "/?id=7f0c4b8e-1c2d-4e5f-8a9b-0c1d2e3f4a5b", nil), "id")
	if err != nil || id.String() != "7f0c4b8e-1c2d-4e5f-8a9b-0c1d2e3f4a5b" {
		t.Fatalf("unexpected id %s err=%v", id, err)
	}
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingInput(t *testing.T) {
	cases := map[string]struct {
		body string
		msg  string
	}{
		"empty":    {body: "", msg: "request body is required"},
		"trailing": {body: `{"username":"a","password":"longenough"}{"x":1}`, msg: "request body must contain a single JSON object"},
		"syntax":   {body: `{"username":`, msg: "malformed JSON"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var body loginBody
			err := DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(tc.body)), &body)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := pkgerrors.As(err).Message(); got != tc.msg {
				t.Fatalf("expected message %q, got %q", tc.msg, got)
			}
		})
	}
}

func TestDecodeJSONBodyEnforcesSizeLimit(t *testing.T) {
	payload := `{"username":"` + strings.Repeat("a", MaxBodyBytes) + `","password":"longenough"}`
	var body loginBody
	err := DecodeJSONBody(httptest.NewRequest("POST", "/", strings.NewReader(payload)), &body)
	if got := pkgerrors.As(err); got == nil || got.Message() != "request body too large" {
		t.Fatalf("expected size limit error, got %v", err)
	}
}

type batchBody struct {
	Codes []string `json:"codes" validate:"required,min=1,max=2,dive,required"`
	Role  string   `json:"role" validate:"omitempty,oneof=duke knight civilian"`
}

func TestDecodeJSONBodyDescribesSlicesAndEnums(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"codes":["a","","c"],"role":"king"}`))
	var body batchBody
	err := DecodeJSONBody(req, &body)
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %v", err)
	}
	if details["codes"] != "must contain at most 2 items" {
		t.Fatalf("unexpected codes detail %q", details["codes"])
	}
	if details["role"] != "must be one of: duke, knight, civilian" {
		t.Fatalf("unexpected role detail %q", details["role"])
	}
}

func TestSearchTerm(t *testing.T) {
	req := httptest.NewRequest("GET", "/?search=%20%20j%C3%BCrgen%20%20%20m%C3%BCller%20", nil)
	if got := SearchTerm(req, "search", 0); got != "jürgen müller" {
		t.Fatalf("unexpected term %q", got)
	}
	if got := SearchTerm(req, "search", 2); got != "jü" {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
	if got := SearchTerm(httptest.NewRequest("GET", "/", nil), "search", 10); got != "" {
		t.Fatalf("expected empty term, got %q", got)
	}
}
