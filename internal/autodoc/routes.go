package autodoc

import (
	"fmt"
	"strings"
)

// Route section fragment names.
const (
	FragPathParams  = "path-params"
	FragQueryParams = "query-params"
	FragRequestBody = "request-body"
	FragResponse    = "response"
)

const paramTableHeader = "| Name | Type |\n| --- | --- |"

var htmlAngleEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;")

// RenderRoute renders the parameter, body and response sections of a route.
func (r *Renderer) RenderRoute(item string, route *RouteInfo) (string, error) {
	frags, err := r.newPass(item).routeSections(route)
	if err != nil {
		return "", err
	}
	return joinFragments(frags), nil
}

// routeSections returns only the sections the route has data for, in the
// order path params, query params, request body, response.
func (p *pass) routeSections(route *RouteInfo) ([]Fragment, error) {
	var frags []Fragment
	if len(route.PathParams) > 0 {
		frags = append(frags, Fragment{
			Name:    FragPathParams,
			Content: "## Path Params\n\n" + p.paramTable(route.PathParams),
		})
	}
	if len(route.QueryParams) > 0 {
		frags = append(frags, Fragment{
			Name:    FragQueryParams,
			Content: "## Query Params\n\n" + p.paramTable(route.QueryParams),
		})
	}
	if sig := deref(route.BodyType); sig != "" {
		body, err := p.requestBody(sig)
		if err != nil {
			return nil, err
		}
		frags = append(frags, Fragment{Name: FragRequestBody, Content: "## Request Body\n\n" + body})
	}
	if sig := deref(route.ReturnType); sig != "" {
		resp, err := p.response(sig)
		if err != nil {
			return nil, err
		}
		frags = append(frags, Fragment{Name: FragResponse, Content: "## Response\n\n" + resp})
	}
	return frags, nil
}

func (p *pass) paramTable(params []ParamInfo) string {
	rows := make([]string, len(params))
	for i, param := range params {
		rows[i] = tableRow(param.Name, p.resolve(param.ParamType))
	}
	return table(paramTableHeader, rows)
}

// requestBody picks the lead sentence from the outermost wrapper before any
// unwrapping happens.
func (p *pass) requestBody(sig string) (string, error) {
	expr, err := ParseType(sig)
	if err != nil {
		return escapeAngles(sig), nil
	}

	typ := p.display(expr)
	lead := typ
	if expr.Kind == ExprWrapper {
		switch expr.Name {
		case wrapJSON:
			lead = "A JSON " + typ
		case wrapForm:
			lead = "A `multipart/form-data` " + typ
		}
	}

	summary, err := p.summaryOf(expr)
	if err != nil {
		return "", err
	}
	return joinBlocks(lead, summary), nil
}

func (p *pass) response(sig string) (string, error) {
	expr, err := ParseType(sig)
	if err != nil {
		return escapeAngles(sig), nil
	}
	expr = expr.UnwrapNamed(wrapResult, wrapRateLimited, wrapJSON)

	summary, err := p.summaryOf(expr)
	if err != nil {
		return "", err
	}
	return joinBlocks(p.display(expr), summary), nil
}

// routeBanner renders the method and path with each <param> segment marked.
func routeBanner(method, route string) string {
	var b strings.Builder
	for route != "" {
		open := strings.IndexByte(route, '<')
		if open < 0 {
			break
		}
		end := strings.IndexByte(route[open:], '>')
		if end < 0 {
			break
		}
		end += open
		b.WriteString(htmlAngleEscaper.Replace(route[:open]))
		fmt.Fprintf(&b, `<span class="special-segment">&lt;%s&gt;</span>`, htmlAngleEscaper.Replace(route[open+1:end]))
		route = route[end+1:]
	}
	b.WriteString(htmlAngleEscaper.Replace(route))
	return fmt.Sprintf(`<span class="method">%s</span><span class="route">%s</span>`, htmlAngleEscaper.Replace(method), b.String())
}
