package output

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ambiyansyah-risyal/lancar"
)

// Formatter renders calls made by the CLI
type Formatter struct {
	Verbose bool
	Colors  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose bool, colors *ColorScheme) *Formatter {
	if colors == nil {
		colors = NoColorScheme()
	}
	return &Formatter{Verbose: verbose, Colors: colors}
}

// FormatRequest formats the outgoing request line and, when verbose, its headers
func (f *Formatter) FormatRequest(call *lancar.Call) string {
	var buf strings.Builder
	buf.WriteString(fmt.Sprintf("▶ %s %s\n", f.Colors.Method.Sprint(call.Method()), f.Colors.URL.Sprint(call.URL())))

	if f.Verbose && call.HTTPRequest != nil {
		f.writeHeaders(&buf, call.HTTPRequest.Header)
		if call.RequestBody != "" {
			buf.WriteString("  Body:\n")
			buf.WriteString(indentJSON(call.RequestBody))
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// FormatResponse formats the status line, headers when verbose, and the body
func (f *Formatter) FormatResponse(resp *lancar.Response) string {
	var buf strings.Builder

	status := f.Colors.StatusError
	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		status = f.Colors.StatusOK
	case code >= 300 && code < 400:
		status = f.Colors.StatusWarn
	}

	elapsed := ""
	if d, ok := resp.Call().Duration(); ok {
		elapsed = fmt.Sprintf(" (%dms)", d.Round(time.Millisecond).Milliseconds())
	}
	buf.WriteString(fmt.Sprintf("◀ %s%s\n", status.Sprint(resp.Status()), elapsed))

	if f.Verbose {
		f.writeHeaders(&buf, resp.Raw().Header)
	}

	body, err := resp.Text()
	if err == nil && body != "" {
		buf.WriteString(indentJSON(body))
		buf.WriteString("\n")
	}
	return buf.String()
}

// FormatError formats a failure
func (f *Formatter) FormatError(err error) string {
	return f.Colors.Error.Sprintf("✗ %v", err) + "\n"
}

func (f *Formatter) writeHeaders(buf *strings.Builder, headers map[string][]string) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			buf.WriteString(fmt.Sprintf("  %s: %s\n", f.Colors.HeaderKey.Sprint(k), v))
		}
	}
}

// indentJSON pretty-prints s when it is JSON and returns it unchanged otherwise
func indentJSON(s string) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(s), "", "  "); err != nil {
		return s
	}
	return pretty.String()
}
