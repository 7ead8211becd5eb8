package reminders

import (
	"fmt"
	"strings"
	"text/template"

	"acp_dues/internal/models"
)

const subject = "Pending dues reminder"

const bodyTemplate = `Hello {{.Name}},

You have pending dues with {{.Association}}.
{{range .Dues}}- Period: {{.Period}} | Due date: {{.DueDate}} | Amount: $ {{.Amount}}
{{end}}
Total owed: $ {{.TotalOwed}}

Please settle them at your earliest convenience. Thank you.
{{.Association}}
`

var body = template.Must(template.New("reminder").Option("missingkey=error").Parse(bodyTemplate))

type messageDue struct {
	Period  string
	DueDate string
	Amount  string
}

type messageData struct {
	Name        string
	Association string
	Dues        []messageDue
	TotalOwed   string
}

func render(association string, row models.MemberDelinquency) (string, error) {
	data := messageData{
		Name:        row.Member.Name,
		Association: association,
		TotalOwed:   row.TotalOwed.StringFixed(2),
	}
	for _, d := range row.Dues {
		data.Dues = append(data.Dues, messageDue{
			Period:  d.Period.String(),
			DueDate: fmt.Sprintf("%02d/%02d/%04d", d.DueDate.Day, int(d.DueDate.Month), d.DueDate.Year),
			Amount:  d.Amount.StringFixed(2),
		})
	}

	var b strings.Builder
	if err := body.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}
