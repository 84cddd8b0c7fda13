package view

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/billing"
)

type page struct {
	Loading, Failed bool
	Message         string
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(nil)
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderStringUsesHelpers(t *testing.T) {
	engine, err := NewEngine(billing.NewFormatter(billing.DefaultFormatConfig))
	require.NoError(t, err)

	_, err = engine.templates.New("probe").Parse(`{{formatDate .}}`)
	require.NoError(t, err)
	out, err := engine.RenderString("probe", time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "10 Feb 2024", out)
}

func TestRenderStatusBuffersErrors(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.RenderStatus(rec, http.StatusNotFound, "pages/missing.html", TemplateData{})
	require.Error(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = httptest.NewRecorder()
	err = engine.RenderStatus(rec, http.StatusBadGateway, "pages/invoice.html", TemplateData{
		Title: "Invoice",
		Data:  page{Failed: true, Message: "The invoicing service is unavailable."},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "The invoicing service is unavailable.")
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestNilEngine(t *testing.T) {
	var engine *Engine
	_, err := engine.RenderString("pages/invoice.html", nil)
	assert.Error(t, err)
}
