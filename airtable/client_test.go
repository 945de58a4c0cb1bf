package airtable

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmdatafocus/po_import/coerce"
	"github.com/mmdatafocus/po_import/reconcile"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL, BaseID: "appTest", APIKey: "secret", RateLimitPerSec: 50})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestFind_PaginatesAndFiltersLinks(t *testing.T) {
	var calls int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v0/appTest/Project PO", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.ElementsMatch(t, []string{"Qty", "SKU", "Non-Catalog", "Vendor"}, r.URL.Query()["fields[]"])
		assert.Empty(t, r.URL.Query().Get("filterByFormula"))

		switch r.URL.Query().Get("offset") {
		case "":
			io.WriteString(w, `{"records":[
				{"id":"rec1","fields":{"Non-Catalog":["recNC"],"Vendor":["recV"]}},
				{"id":"rec2","fields":{"Non-Catalog":["recNC"],"Vendor":["recOther"]}}
			],"offset":"page2"}`)
		case "page2":
			io.WriteString(w, `{"records":[
				{"id":"rec3","fields":{"Non-Catalog":["recX","recNC"],"Vendor":["recV"]}}
			]}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})

	filter := reconcile.Filter{reconcile.LinkedTo("Non-Catalog", "recNC"), reconcile.LinkedTo("Vendor", "recV")}
	recs, err := c.Find(context.Background(), "Project PO", filter, []string{"Qty", "SKU", "Vendor"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "rec1", recs[0].ID)
	assert.Equal(t, "rec3", recs[1].ID)
	assert.Equal(t, 2, calls)
}

func TestFind_PushesValueMatchesAsFormula(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `{SKU}="AB\"C"`, r.URL.Query().Get("filterByFormula"))
		io.WriteString(w, `{"records":[{"id":"recNC","fields":{"SKU":"AB\"C"}}]}`)
	})

	recs, err := c.Find(context.Background(), "Non-Catalog", reconcile.Filter{reconcile.Equals("SKU", `AB"C`)}, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "recNC", recs[0].ID)
}

func TestCreate_SendsWireShapes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"fields":{
			"Qty": 2,
			"Unit": {"name":"Each"},
			"Non-Catalog": [{"id":"recNC"}],
			"Discount.%": 0.1,
			"Date - In": "2024-02-01"
		}}`, string(body))
		io.WriteString(w, `{"id":"recNew","fields":{"Qty":2}}`)
	})

	d, _ := coerce.Coerce("02/01/2024", "date", coerce.Options{DateFormat: "MM/dd/YYYY"})
	rec, err := c.Create(context.Background(), "Project PO", reconcile.FieldMap{
		"Qty":         coerce.Number(decimal.NewFromInt(2)),
		"Unit":        coerce.Choice("Each"),
		"Non-Catalog": coerce.Links("recNC"),
		"Discount.%":  coerce.Ratio(decimal.RequireFromString("0.1")),
		"Date - In":   d,
	})
	require.NoError(t, err)
	assert.Equal(t, "recNew", rec.ID)
	assert.EqualValues(t, 2, rec.Fields["Qty"])
}

func TestUpdate_Patches(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v0/appTest/Project PO/rec42", r.URL.Path)
		io.WriteString(w, `{"id":"rec42","fields":{"SKU":"ABC"}}`)
	})

	rec, err := c.Update(context.Background(), "Project PO", "rec42", reconcile.FieldMap{"SKU": coerce.String("ABC")})
	require.NoError(t, err)
	assert.Equal(t, "rec42", rec.ID)
	assert.Equal(t, "ABC", rec.Fields["SKU"])
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		typ       string
		message   string
		retryable bool
	}{
		{"object", http.StatusUnprocessableEntity, `{"error":{"type":"INVALID_VALUE_FOR_COLUMN","message":"Field \"Unit\" cannot accept the provided value"}}`, "INVALID_VALUE_FOR_COLUMN", `Field "Unit" cannot accept the provided value`, false},
		{"string", http.StatusNotFound, `{"error":"NOT_FOUND"}`, "NOT_FOUND", "", false},
		{"plain", http.StatusBadGateway, `upstream down`, "Bad Gateway", "upstream down", true},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"type":"RATE_LIMIT_REACHED","message":"slow down"}}`, "RATE_LIMIT_REACHED", "slow down", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})
			_, err := c.Create(context.Background(), "Project PO", reconcile.FieldMap{})
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.typ, apiErr.Type)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.retryable, apiErr.Retryable())
		})
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(Config{BaseID: "app"})
	assert.Error(t, err)
	_, err = New(Config{APIKey: "key"})
	assert.Error(t, err)
}

func TestDo_CanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Find(ctx, "Project PO", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormula(t *testing.T) {
	assert.Equal(t, "", Formula(reconcile.Filter{reconcile.LinkedTo("Vendor", "recV")}))
	assert.Equal(t, `{SKU}="A"`, Formula(reconcile.Filter{reconcile.Equals("SKU", "A")}))
	assert.Equal(t, `AND({SKU}="A",{PO}="P\\1")`, Formula(reconcile.Filter{reconcile.Equals("SKU", "A"), reconcile.Equals("PO", `P\1`)}))
}
