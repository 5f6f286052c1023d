package chi

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/openglam/photosearch/internal/domain"
)

// debugTemplate is a minimal operator page for eyeballing search quality
// without a IIIF viewer.
var debugTemplate = template.Must(template.New("debug").Parse(`<!DOCTYPE html>
<html>
<head>
<title>photosearch</title>
<style>
body { font-family: sans-serif; margin: 2em; max-width: 60em; }
input[type=text] { width: 24em; }
.hit { display: inline-block; margin: 0.5em; text-align: center; }
.hit img { max-height: 200px; display: block; }
.score { color: #666; font-size: 0.8em; }
</style>
</head>
<body>
<h1>photosearch</h1>
<form method="get" action="/">
<p><label>Manifest <input type="text" name="manifest" value="{{.ManifestID}}"></label></p>
<p><label>Query <input type="text" name="q" value="{{.Query}}"></label>
<button type="submit">Search</button></p>
</form>
{{if .Error}}<p class="score">{{.Error}}</p>{{end}}
{{range .Hits}}
<div class="hit">
<img src="{{.Payload.ImageURL}}" alt="{{.Payload.Label}}">
<div>{{.Payload.Label}}</div>
<div class="score">{{printf "%.3f" .Score}}</div>
</div>
{{end}}
</body>
</html>
`))

type debugPageData struct {
	ManifestID string
	Query      string
	Hits       []domain.SearchHit
	Error      string
}

// DebugPage handles GET /. With q and manifest set it renders results inline;
// otherwise it shows the empty form.
func (s *Server) DebugPage(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	data := debugPageData{
		ManifestID: params.Get("manifest"),
		Query:      params.Get("q"),
	}

	if data.Query != "" && data.ManifestID != "" {
		hits, err := s.search.Search(r.Context(), domain.Query{
			Text:       data.Query,
			ManifestID: data.ManifestID,
		})
		if err != nil {
			data.Error = safeDomainMessage(err)
		} else {
			data.Hits = hits
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := debugTemplate.Execute(w, data); err != nil {
		s.logger.Error("render debug page", zap.Error(err))
	}
}
