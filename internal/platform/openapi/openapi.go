package openapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

// Generator builds an OpenAPI 3.0 document from the routes registered on an
// echo instance.
type Generator struct {
	e       *echo.Echo
	title   string
	version string
	prefix  string
}

// NewGenerator returns a generator that documents routes under prefix
// ("/api/v1").
func NewGenerator(e *echo.Echo, title, version, prefix string) *Generator {
	return &Generator{e: e, title: title, version: version, prefix: prefix}
}

// GenerateSpec produces the document as a map ready for JSON encoding.
func (g *Generator) GenerateSpec() map[string]interface{} {
	routes := g.e.Routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	paths := make(map[string]map[string]interface{})
	tagSet := make(map[string]bool)
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, g.prefix+"/") || !documented(r.Method) {
			continue
		}
		path, params := openAPIPath(r.Path)
		tag := tagOf(strings.TrimPrefix(r.Path, g.prefix))
		tagSet[tag] = true

		if paths[path] == nil {
			paths[path] = make(map[string]interface{})
		}
		paths[path][strings.ToLower(r.Method)] = g.operation(r, tag, params)
	}

	tags := make([]map[string]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, map[string]string{"name": t})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i]["name"] < tags[j]["name"] })

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":   g.title,
			"version": g.version,
		},
		"servers": []map[string]string{{"url": g.prefix}},
		"tags":    tags,
		"paths":   paths,
		"components": map[string]interface{}{
			"schemas": componentSchemas(),
		},
	}
}

func documented(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// openAPIPath rewrites echo's ":id" segments as "{id}".
func openAPIPath(echoPath string) (string, []string) {
	segments := strings.Split(echoPath, "/")
	var params []string
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			name := s[1:]
			params = append(params, name)
			segments[i] = "{" + name + "}"
		}
	}
	return strings.Join(segments, "/"), params
}

func tagOf(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	return path
}

func (g *Generator) operation(r *echo.Route, tag string, params []string) map[string]interface{} {
	parameters := make([]map[string]interface{}, 0, len(params))
	for _, p := range params {
		parameters = append(parameters, map[string]interface{}{
			"name":     p,
			"in":       "path",
			"required": true,
			"schema":   map[string]string{"type": "string", "format": "uuid"},
		})
	}

	success := "200"
	switch {
	case r.Method == http.MethodDelete:
		success = "204"
	case r.Method == http.MethodPost && createsResource(r.Path):
		success = "201"
	}

	op := map[string]interface{}{
		"operationId": operationID(r.Name),
		"tags":        []string{tag},
		"parameters":  parameters,
		"responses": map[string]interface{}{
			success: map[string]string{"description": "Success"},
			"400":   errorResponse("Invalid request"),
			"404":   errorResponse("Not found"),
			"409":   errorResponse("Conflict with the current state"),
		},
	}
	if r.Method == http.MethodPost || r.Method == http.MethodPut {
		op["requestBody"] = map[string]interface{}{
			"content": map[string]interface{}{
				"application/json": map[string]interface{}{
					"schema": map[string]string{"type": "object"},
				},
			},
		}
	}
	return op
}

// createsResource reports whether a POST path names a collection rather than
// an action on an existing resource.
func createsResource(path string) bool {
	last := path[strings.LastIndex(path, "/")+1:]
	switch last {
	case "start", "complete", "no-show", "diagnosis", "treatment":
		return false
	}
	return !strings.HasPrefix(last, ":")
}

// operationID turns a handler name such as
// "github.com/x/visit.(*Handler).CreateVisit-fm" into "CreateVisit".
func operationID(handlerName string) string {
	name := handlerName[strings.LastIndex(handlerName, ".")+1:]
	return strings.TrimSuffix(name, "-fm")
}

func errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]string{"$ref": "#/components/schemas/Error"},
			},
		},
	}
}

func componentSchemas() map[string]interface{} {
	return map[string]interface{}{
		"Error": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"message": map[string]string{"type": "string"},
			},
			"required": []string{"message"},
		},
		"Date": map[string]string{"type": "string", "format": "date", "example": "2025-05-01"},
		"TimeOfDay": map[string]string{
			"type":    "string",
			"pattern": "^([01][0-9]|2[0-3]):[0-5][0-9](:[0-5][0-9])?$",
			"example": "09:30",
		},
	}
}

// RegisterRoutes serves the document at /openapi.json on g.
func (g *Generator) RegisterRoutes(group *echo.Group) {
	group.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
}
