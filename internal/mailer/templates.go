package mailer

import (
	"bytes"
	"html/template"
)

// Template keys, one per notification email.
const (
	TemplateTicketAssigned = "ticketAssigned"
	TemplateTicketReply    = "ticketReply"
	TemplateTicketClosed   = "ticketClosed"
	TemplateTicketUpdated  = "ticketUpdated"
)

// TemplateData parameterizes every template. TicketID is the short
// display form. Author and Body are used by the reply template, Body
// alone by the update template.
type TemplateData struct {
	TicketID    string
	TicketTitle string
	Author      string
	Body        string
}

var templates = template.Must(template.New("email").Parse(`
{{define "ticketAssigned"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #2563eb;">Ticket Assigned</h2>
    <p>Hello,</p>
    <p>A ticket has been assigned to you:</p>
    <div style="background-color: #f3f4f6; padding: 15px; border-radius: 5px; margin: 20px 0;">
        <p><strong>Ticket ID:</strong> #{{.TicketID}}</p>
        <p><strong>Title:</strong> {{.TicketTitle}}</p>
    </div>
    <p>Please review and respond to this ticket at your earliest convenience.</p>
    <p>Best regards,<br>Support Desk Team</p>
</div>{{end}}

{{define "ticketReply"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #2563eb;">New Reply on Your Ticket</h2>
    <p>Hello,</p>
    <p>There's a new reply on your ticket:</p>
    <div style="background-color: #f3f4f6; padding: 15px; border-radius: 5px; margin: 20px 0;">
        <p><strong>Ticket ID:</strong> #{{.TicketID}}</p>
        <p><strong>Title:</strong> {{.TicketTitle}}</p>
        <p><strong>From:</strong> {{.Author}}</p>
        <hr style="border: none; border-top: 1px solid #d1d5db; margin: 10px 0;">
        <p>{{.Body}}</p>
    </div>
    <p>Please log in to view and respond.</p>
    <p>Best regards,<br>Support Desk Team</p>
</div>{{end}}

{{define "ticketClosed"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #dc2626;">Ticket Closed</h2>
    <p>Hello,</p>
    <p>Your ticket has been closed:</p>
    <div style="background-color: #f3f4f6; padding: 15px; border-radius: 5px; margin: 20px 0;">
        <p><strong>Ticket ID:</strong> #{{.TicketID}}</p>
        <p><strong>Title:</strong> {{.TicketTitle}}</p>
    </div>
    <p>If you need further assistance, please create a new ticket.</p>
    <p>Best regards,<br>Support Desk Team</p>
</div>{{end}}

{{define "ticketUpdated"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2 style="color: #2563eb;">Ticket Updated</h2>
    <p>Hello,</p>
    <p>Your ticket has been updated:</p>
    <div style="background-color: #f3f4f6; padding: 15px; border-radius: 5px; margin: 20px 0;">
        <p><strong>Ticket ID:</strong> #{{.TicketID}}</p>
        <p><strong>Title:</strong> {{.TicketTitle}}</p>
        <p><strong>Update:</strong> {{.Body}}</p>
    </div>
    <p>Please log in to view the details.</p>
    <p>Best regards,<br>Support Desk Team</p>
</div>{{end}}
`))

// Render produces the HTML body for the named template.
func Render(name string, data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
