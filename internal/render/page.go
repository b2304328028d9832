package render

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/punchamoorthee/irrigationcal/internal/domain"
	"github.com/punchamoorthee/irrigationcal/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
	gmtext "github.com/yuin/goldmark/text"
)

const fetchErrorMessage = "Unable to fetch irrigation data"

// Notices are rendered as Markdown without WithUnsafe; see renderNotice for
// notices that carry HTML.
var noticeRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var pageTmpl = template.Must(template.New("page").Parse(pageTemplate))

// PageInput is everything the status page needs for one request.
type PageInput struct {
	Registry       *domain.Registry
	Results        []models.FetchResult
	Remembered     []string
	RequestParam   string
	AcceptLanguage string
}

type switchOption struct {
	Value    string
	Label    string
	Selected bool
}

type section struct {
	Name        string
	Separator   bool
	OK          bool
	Error       string
	Status      string
	NextDate    string
	Address     string
	Notice      template.HTML
	CalendarURL string
}

type pageData struct {
	Title    string
	Heading  string
	Switcher []switchOption
	Sections []section
}

// Page writes the status page. Accounts whose fetch failed get an inline
// error block instead of schedule details.
func Page(w io.Writer, in PageInput) error {
	data := pageData{
		Title:    "Irrigation Schedules",
		Heading:  "Irrigation Schedules",
		Switcher: switcherOptions(in.Registry, in.Remembered, in.RequestParam),
	}
	if len(in.Results) == 1 {
		data.Title = "Irrigation Schedule - " + in.Results[0].Account.Name
		data.Heading = "Irrigation Schedule"
	}

	for i, r := range in.Results {
		sec := section{Name: r.Account.Name, Separator: i > 0}
		sched, err := r.Outcome.Get()
		if err != nil {
			sec.Error = fetchErrorMessage
			data.Sections = append(data.Sections, sec)
			continue
		}
		sec.OK = true
		sec.Status = sched.Snapshot.OrderStatus
		sec.NextDate = FormatLocalDate(sched.Start, in.AcceptLanguage)
		sec.Address = sched.Snapshot.Detail.Address
		sec.Notice = renderNotice(sched.Snapshot.IrrigationNotice)
		sec.CalendarURL = "/" + url.PathEscape(r.Account.ID) + ".ics"
		data.Sections = append(data.Sections, sec)
	}

	if err := pageTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

func switcherOptions(reg *domain.Registry, remembered []string, requestParam string) []switchOption {
	if len(remembered) == 0 {
		return nil
	}

	var opts []switchOption
	if len(remembered) > 1 {
		all := strings.Join(remembered, ",")
		opts = append(opts, switchOption{Value: all, Label: "View All", Selected: requestParam == all})
	}
	for _, id := range remembered {
		if reg == nil {
			break
		}
		acct, ok := reg.Lookup(id)
		if !ok {
			continue
		}
		opts = append(opts, switchOption{Value: id, Label: acct.Name, Selected: requestParam == id})
	}
	return opts
}

// renderNotice renders the notice as Markdown. Notices carrying HTML tags are
// shown escaped with their line breaks kept, so the markup stays visible
// instead of being dropped by the renderer.
func renderNotice(md string) template.HTML {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	src := []byte(md)
	doc := noticeRenderer.Parser().Parse(gmtext.NewReader(src))
	if containsRawHTML(doc) {
		return escapedNotice(md)
	}
	var buf bytes.Buffer
	if err := noticeRenderer.Renderer().Render(&buf, src, doc); err != nil {
		return escapedNotice(md)
	}
	return template.HTML(buf.String())
}

func containsRawHTML(doc ast.Node) bool {
	found := false
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && (n.Kind() == ast.KindRawHTML || n.Kind() == ast.KindHTMLBlock) {
			found = true
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return found
}

func escapedNotice(md string) template.HTML {
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = template.HTMLEscapeString(l)
	}
	return template.HTML(strings.Join(lines, "<br>\n"))
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; background-color: #f5f5f5; }
        .container { background-color: white; padding: 30px; border-radius: 10px; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
        h1 { color: #2c3e50; margin-bottom: 20px; }
        h2 { color: #34495e; margin-top: 0; margin-bottom: 15px; font-size: 22px; }
        .schedule-section { margin-bottom: 20px; }
        .schedule-separator { padding-top: 30px; border-top: 2px solid #ecf0f1; }
        .account-switcher { margin-bottom: 20px; padding-bottom: 20px; border-bottom: 2px solid #ecf0f1; }
        .account-switcher label { display: block; margin-bottom: 8px; font-weight: bold; color: #2c3e50; }
        .account-switcher select { width: 100%; padding: 10px; font-size: 16px; border: 1px solid #bdc3c7; border-radius: 5px; background-color: white; cursor: pointer; }
        .account-switcher select:hover, .account-switcher select:focus { border-color: #3498db; }
        .date { font-size: 24px; color: #27ae60; font-weight: bold; margin: 20px 0; }
        .info { margin: 10px 0; color: #555; }
        .label { font-weight: bold; color: #2c3e50; }
        .error { color: #e74c3c; padding: 10px; background-color: #fadbd8; border-radius: 5px; margin: 10px 0; }
        a { display: inline-block; margin-top: 20px; padding: 10px 20px; background-color: #3498db; color: white; text-decoration: none; border-radius: 5px; }
        a:hover { background-color: #2980b9; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Heading}}</h1>
        {{- if .Switcher}}
        <div class="account-switcher">
            <label for="account-select">Switch Account:</label>
            <select id="account-select" onchange="window.location.href='/'+this.value">
            {{- range .Switcher}}
                <option value="{{.Value}}"{{if .Selected}} selected{{end}}>{{.Label}}</option>
            {{- end}}
            </select>
        </div>
        {{- end}}
        {{- range .Sections}}
        <div class="schedule-section{{if .Separator}} schedule-separator{{end}}">
            <h2>{{.Name}}</h2>
            {{- if .OK}}
            <div class="info"><span class="label">Status:</span> {{.Status}}</div>
            <div class="info"><span class="label">Next Irrigation Date:</span></div>
            <div class="date">{{.NextDate}}</div>
            <div class="info"><span class="label">Location:</span> {{.Address}}</div>
            <div class="info notice">{{.Notice}}</div>
            <a href="{{.CalendarURL}}">Download Calendar (.ics)</a>
            {{- else}}
            <div class="error">{{.Error}}</div>
            {{- end}}
        </div>
        {{- end}}
    </div>
</body>
</html>
`
