// Package templates renders email bodies with the Liquid template language.
//
// Every email type has one built-in body template. Render fails with
// ErrInvalidTemplate when the type has no template or a required data key
// is missing, so the dispatcher can record the attempt as FAILED with a
// template-invalid reason instead of sending a half-filled message.
package templates

import (
	"errors"
	"fmt"
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/notify-dispatch/internal/domain"
)

// ErrInvalidTemplate is returned for unknown types and missing data.
var ErrInvalidTemplate = errors.New("invalid template")

// Renderer handles Liquid template rendering with parsed-template caching.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[domain.EmailType]*liquid.Template
	bodies map[domain.EmailType]string
}

// NewRenderer creates a renderer holding the built-in templates.
func NewRenderer() *Renderer {
	r := &Renderer{engine: liquid.NewEngine(), bodies: builtin}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// {{ first_name | default: "there" }}
	r.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ userName | escape }}
	r.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	// {{ email | urlencode }}
	r.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// {{ total | currency }}
	r.engine.RegisterFilter("currency", func(value interface{}) string {
		var f float64
		switch v := value.(type) {
		case float64:
			f = v
		case int:
			f = float64(v)
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return v
			}
			f = parsed
		default:
			return fmt.Sprintf("%v", value)
		}
		return fmt.Sprintf("$%.2f", f)
	})
}

// Render produces the HTML body for t with data.
func (r *Renderer) Render(t domain.EmailType, data map[string]string) (string, error) {
	info, ok := t.Info()
	if !ok {
		return "", fmt.Errorf("%w: unknown email type %q", ErrInvalidTemplate, t)
	}
	body, ok := r.bodies[t]
	if !ok {
		return "", fmt.Errorf("%w: no template for %s", ErrInvalidTemplate, t)
	}
	var missing []string
	for _, k := range info.RequiredData {
		if strings.TrimSpace(data[k]) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", fmt.Errorf("%w: %s requires %s", ErrInvalidTemplate, t, strings.Join(missing, ", "))
	}

	tpl, err := r.parsed(t, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	bindings := make(map[string]interface{}, len(data))
	for k, v := range data {
		bindings[k] = v
	}
	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	return out, nil
}

func (r *Renderer) parsed(t domain.EmailType, body string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(t); ok {
		return cached.(*liquid.Template), nil
	}
	tpl, err := r.engine.ParseString(layoutHead + body + layoutFoot)
	if err != nil {
		return nil, err
	}
	r.cache.Store(t, tpl)
	return tpl, nil
}

// Count returns the number of available templates.
func (r *Renderer) Count() int {
	return len(r.bodies)
}
