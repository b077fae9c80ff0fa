package rpc

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/models"
	"github.com/Cogwheel-Validator/spectra-nft-minter/minter/session"
	"github.com/go-chi/chi/v5"
)

const previewPath = "/preview/"

//go:embed web/index.html
var webFS embed.FS

var pageTemplate = template.Must(template.ParseFS(webFS, "web/index.html"))

type pageData struct {
	ContractAddress string
	ServiceName     string
	SessionHeader   string
	MaxImageBytes   int64
}

// pageHandler renders the form. The page is the same for every view, so it is rendered once.
func pageHandler(contractAddress string, maxImageBytes int64) (http.HandlerFunc, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, pageData{
		ContractAddress: contractAddress,
		ServiceName:     MintServiceName,
		SessionHeader:   models.SessionHeader,
		MaxImageBytes:   maxImageBytes,
	})
	if err != nil {
		return nil, err
	}
	page := buf.Bytes()

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(page)
	}, nil
}

// previewHandler serves an image selected by a page view.
// Previews are user content, so they are sandboxed and never sniffed.
func previewHandler(previews *session.PreviewStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := previews.Get(chi.URLParam(r, "id"))
		if !ok {
			http.NotFound(w, r)
			return
		}

		h := w.Header()
		h.Set("Content-Type", p.ContentType)
		h.Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Cache-Control", "private, max-age=3600")
		_, _ = w.Write(p.Data)
	}
}
