package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/edgeflare/pglist/pkg/query"
	"github.com/mitchellh/mapstructure"
)

type paramType int

const (
	stringParam paramType = iota
	boolParam
	intParam
	jsonParam // JSON text in query strings, any JSON value in bodies
)

type action string

const (
	actionIndex action = "index"
	actionShow  action = "show"
)

// actionParams lists the parameters each action reads. Anything else in the
// request is ignored.
var actionParams = map[action]map[string]paramType{
	actionIndex: {
		"filters":       jsonParam,
		"where":         jsonParam,
		"order":         jsonParam,
		"select":        jsonParam,
		"distinct":      boolParam,
		"limit":         intParam,
		"offset":        intParam,
		"count":         stringParam,
		"include_trash": boolParam,
		"include":       stringParam,
		"reader_tokens": jsonParam,
	},
	actionShow: {
		"select":        jsonParam,
		"include_trash": boolParam,
		"reader_tokens": jsonParam,
	},
}

// Params are the decoded request parameters of a listing action.
type Params struct {
	Filters      any      `mapstructure:"filters"`
	Where        any      `mapstructure:"where"`
	Order        any      `mapstructure:"order"`
	Select       any      `mapstructure:"select"`
	Distinct     bool     `mapstructure:"distinct"`
	Limit        *int     `mapstructure:"limit"`
	Offset       int      `mapstructure:"offset"`
	Count        string   `mapstructure:"count"`
	IncludeTrash bool     `mapstructure:"include_trash"`
	Include      string   `mapstructure:"include"`
	ReaderTokens []string `mapstructure:"reader_tokens"`
}

func (p Params) Query() query.Params {
	return query.Params{
		Filters:  p.Filters,
		Where:    p.Where,
		Order:    p.Order,
		Select:   p.Select,
		Distinct: p.Distinct,
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
}

const maxBodyBytes = 1 << 20

// readParams merges the query string with a JSON or form body. Body values
// win.
func readParams(r *http.Request) (map[string]any, error) {
	raw := make(map[string]any)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}

	if r.Body != nil && r.Method != http.MethodGet {
		body, err := bodyParams(r)
		if err != nil {
			return nil, err
		}
		for k, v := range body {
			raw[k] = v
		}
	}
	return raw, nil
}

func bodyParams(r *http.Request) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, query.Errorf(query.KindInvalidParameter, "invalid form body: %v", err)
		}
		out := make(map[string]any, len(r.PostForm))
		for key, values := range r.PostForm {
			if len(values) > 0 {
				out[key] = values[0]
			}
		}
		return out, nil
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, query.Errorf(query.KindInvalidParameter, "request body must be a JSON object: %v", err)
	}
	return out, nil
}

// decodeParams coerces every parameter act accepts and ignores the rest.
func decodeParams(raw map[string]any, act action) (Params, error) {
	accepted := actionParams[act]
	coerced := make(map[string]any, len(accepted))
	for name, typ := range accepted {
		v, ok := raw[name]
		if !ok || v == nil {
			continue
		}
		c, err := coerce(name, typ, v)
		if err != nil {
			return Params{}, err
		}
		coerced[name] = c
	}

	var p Params
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &p,
		// a lone reader token becomes a one-element list
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Params{}, err
	}
	if err := dec.Decode(coerced); err != nil {
		return Params{}, query.Errorf(query.KindInvalidParameter, "invalid parameters: %v", err)
	}
	return p, nil
}

func coerce(name string, typ paramType, v any) (any, error) {
	switch typ {
	case boolParam:
		b, ok := parseBool(v)
		if !ok {
			return nil, query.Errorf(query.KindInvalidParameter, "%s must be true, false, 1 or 0, got %s", name, describe(v))
		}
		return b, nil

	case intParam:
		// negative values are clamped to 0 by the plan
		n, ok := parseInt(v)
		if !ok {
			return nil, query.Errorf(query.KindInvalidParameter, "%s must be an integer, got %s", name, describe(v))
		}
		return n, nil

	case stringParam:
		s, ok := v.(string)
		if !ok {
			return nil, query.Errorf(query.KindInvalidParameter, "%s must be a string, got %s", name, describe(v))
		}
		return s, nil

	case jsonParam:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		trimmed := strings.TrimSpace(s)
		if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
			return s, nil
		}
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		var out any
		if err := dec.Decode(&out); err != nil {
			return nil, query.Errorf(query.KindInvalidParameter, "%s is not valid JSON: %v", name, err)
		}
		return out, nil
	}
	return v, nil
}

func parseBool(v any) (bool, bool) {
	switch v := v.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	case json.Number:
		switch v.String() {
		case "1":
			return true, true
		case "0":
			return false, true
		}
	case float64:
		switch v {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

func parseInt(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	case json.Number:
		n, err := strconv.Atoi(v.String())
		return n, err == nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > math.MaxInt32 {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}

func describe(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprintf("%v", v)
}
