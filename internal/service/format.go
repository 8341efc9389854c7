package service

import (
	"fmt"
	"html"
	"strings"

	"bandonotifier/internal/entity"
)

const _dateLayout = "02/01/2006"

func alertSubject(d entity.Deadline, daysLeft int) string {
	switch {
	case daysLeft < 0:
		return fmt.Sprintf("Scadenza superata: %s", d.Title)
	case daysLeft == 0:
		return fmt.Sprintf("Scadenza oggi: %s", d.Title)
	case daysLeft == 1:
		return fmt.Sprintf("Scadenza domani: %s", d.Title)
	default:
		return fmt.Sprintf("Scadenza tra %d giorni: %s", daysLeft, d.Title)
	}
}

func alertBody(d entity.Deadline, daysLeft int) string {
	var b strings.Builder
	b.WriteString("<h2>Promemoria scadenza</h2>")
	fmt.Fprintf(&b, "<p><strong>%s</strong></p>", html.EscapeString(d.Title))
	fmt.Fprintf(&b, "<p>Data di scadenza: <strong>%s</strong>", d.DueDate.Format(_dateLayout))
	switch {
	case daysLeft < 0:
		fmt.Fprintf(&b, " (superata da %d giorni)</p>", -daysLeft)
	case daysLeft == 0:
		b.WriteString(" (oggi)</p>")
	default:
		fmt.Fprintf(&b, " (tra %d giorni)</p>", daysLeft)
	}
	fmt.Fprintf(&b, "<p>Priorit&agrave;: %s</p>", priorityLabel(d.Priority))
	if d.Note != "" {
		fmt.Fprintf(&b, "<p>Note: %s</p>", html.EscapeString(d.Note))
	}
	return b.String()
}

func digestSubject(count int) string {
	return fmt.Sprintf("Riepilogo settimanale: %d scadenze nei prossimi 7 giorni", count)
}

func digestBody(deadlines []entity.Deadline) string {
	var b strings.Builder
	b.WriteString("<h2>Riepilogo settimanale delle scadenze</h2>")
	b.WriteString("<table border=\"1\" cellpadding=\"4\" cellspacing=\"0\">")
	b.WriteString("<tr><th>Titolo</th><th>Scadenza</th><th>Priorit&agrave;</th><th>Responsabile</th></tr>")
	for _, d := range deadlines {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(d.Title),
			d.DueDate.Format(_dateLayout),
			priorityLabel(d.Priority),
			html.EscapeString(d.ResponsibleEmail),
		)
	}
	b.WriteString("</table>")
	return b.String()
}

func assignmentSubject(projectTitle string) string {
	return fmt.Sprintf("Nuovo progetto assegnato: %s", projectTitle)
}

func assignmentBody(projectTitle string, deadlines []entity.Deadline) string {
	var b strings.Builder
	b.WriteString("<h2>Assegnazione progetto</h2>")
	fmt.Fprintf(&b, "<p>Ti &egrave; stato assegnato il progetto <strong>%s</strong>.</p>", html.EscapeString(projectTitle))
	if len(deadlines) > 0 {
		b.WriteString("<p>Scadenze collegate:</p><ul>")
		for _, d := range deadlines {
			fmt.Fprintf(&b, "<li>%s &mdash; %s</li>", html.EscapeString(d.Title), d.DueDate.Format(_dateLayout))
		}
		b.WriteString("</ul>")
	}
	return b.String()
}

func priorityLabel(p entity.DeadlinePriority) string {
	switch p {
	case entity.PriorityCritical:
		return "critica"
	case entity.PriorityHigh:
		return "alta"
	case entity.PriorityMedium:
		return "media"
	default:
		return "bassa"
	}
}
