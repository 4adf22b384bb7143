package view

import (
	"fmt"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gramy/gramy/internal/authctx"
	"github.com/gramy/gramy/internal/shared"
	"github.com/gramy/gramy/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Query       url.Values
	Viewer      *authctx.Principal
	Data        any
}

// pageLink rewrites the page parameter of q onto path.
func pageLink(path string, q url.Values, page int) string {
	next := url.Values{}
	for k, v := range q {
		next[k] = append([]string(nil), v...)
	}
	next.Set("page", strconv.Itoa(page))
	return path + "?" + next.Encode()
}

// Pager feeds the pagination partial.
type Pager struct {
	Path  string
	Query url.Values
	shared.Pagination
}

func funcs() template.FuncMap {
	return template.FuncMap{
		// A Caser is stateful, so each call gets its own.
		"title": func(s string) string {
			return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
		},
		"pageLink": pageLink,
		"dict": func(kv ...any) (map[string]any, error) {
			if len(kv)%2 != 0 {
				return nil, fmt.Errorf("dict: odd number of arguments")
			}
			out := make(map[string]any, len(kv)/2)
			for i := 0; i < len(kv); i += 2 {
				key, ok := kv[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
				}
				out[key] = kv[i+1]
			}
			return out, nil
		},
		"pager": func(path string, q url.Values, p shared.Pagination) Pager {
			return Pager{Path: path, Query: q, Pagination: p}
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006")
		},
		"formatHours": func(h float64) string {
			return strconv.FormatFloat(math.Round(h*10)/10, 'f', -1, 64)
		},
		"stars": func(rating int) string {
			if rating < 0 {
				rating = 0
			}
			if rating > 5 {
				rating = 5
			}
			out := ""
			for i := 0; i < 5; i++ {
				if i < rating {
					out += "★"
				} else {
					out += "☆"
				}
			}
			return out
		},
		"add": func(a, b int) int { return a + b },
		"sub": func(a, b int) int { return a - b },
		"hasID": func(ids []int64, id int64) bool {
			for _, v := range ids {
				if v == id {
					return true
				}
			}
			return false
		},
		"seq": func(n int) []int {
			out := make([]int, n)
			for i := range out {
				out[i] = i + 1
			}
			return out
		},
		"deref": func(f *float64) float64 {
			if f == nil {
				return 0
			}
			return *f
		},
	}
}

// NewEngine parses templates at build-time.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").Funcs(funcs()).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
