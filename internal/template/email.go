package template

import (
	"fmt"
	"html"
	"maps"
	"slices"
	"strings"
)

var priorityColors = map[string]string{
	"urgent": "#c0392b",
	"high":   "#d35400",
	"normal": "#2e7d32",
	"low":    "#607d8b",
}

func NotificationTemplate(title, message, priority string, data map[string]any) string {
	color, ok := priorityColors[priority]
	if !ok {
		color = priorityColors["normal"]
	}

	var rows strings.Builder
	for _, key := range slices.Sorted(maps.Keys(data)) {
		fmt.Fprintf(&rows, "<tr><td><b>%s</b></td><td>%s</td></tr>",
			html.EscapeString(key), html.EscapeString(fmt.Sprint(data[key])))
	}

	template := fmt.Sprintf(`
		<html>
        <body>
            <h2 style="color:%s">%s</h2>
            <p>%s</p>
            <table>%s</table>
            <br>
            <p>Regards,<br>Farm Advisory</p>
        </body>
        </html>
		`, color, html.EscapeString(title), html.EscapeString(message), rows.String())
	return template
}
