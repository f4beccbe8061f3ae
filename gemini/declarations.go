package gemini

import (
	"google.golang.org/genai"

	"github.com/techaid-za/voicedesk/tools"
)

// Declarations returns the function declarations the agent may call
// during a voice session.
func Declarations() []*genai.Tool {
	return []*genai.Tool{
		{
			FunctionDeclarations: []*genai.FunctionDeclaration{
				{
					Name: tools.NameUpdateContact,
					Description: "Update the WhatsApp hand-off button with a summary of the " +
						"conversation so the user can continue over chat. Call this whenever " +
						"the conversation produces something worth following up on.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"summary": {
								Type:        genai.TypeString,
								Description: "Short summary of the user's request, for the chat message body.",
							},
						},
						Required: []string{"summary"},
					},
				},
				{
					Name: tools.NameOpenBooking,
					Description: "Open the booking form and pre-fill any details the user has " +
						"given. Omit fields you do not know; previously filled fields are kept.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"name":       {Type: genai.TypeString, Description: "Customer name."},
							"phone":      {Type: genai.TypeString, Description: "Contact phone number."},
							"email":      {Type: genai.TypeString, Description: "Contact email address."},
							"address":    {Type: genai.TypeString, Description: "Pickup or on-site address."},
							"deviceType": {Type: genai.TypeString, Description: "Kind of device, e.g. laptop, desktop, printer."},
							"serviceType": {
								Type:        genai.TypeString,
								Description: "One of: Repair, Diagnostic, Software, Network.",
								Enum:        tools.ServiceTypes,
							},
							"issue": {Type: genai.TypeString, Description: "Description of the problem."},
						},
					},
				},
				{
					Name: tools.NameOpenScanner,
					Description: "Open the on-screen device scanner so the user can capture " +
						"their device's details with the camera.",
					Parameters: &genai.Schema{
						Type:       genai.TypeObject,
						Properties: map[string]*genai.Schema{},
					},
				},
				{
					Name:        tools.NameNavigate,
					Description: "Scroll the page to a section the user asked about.",
					Parameters: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"section": {
								Type:        genai.TypeString,
								Description: "One of: home, services, remote, contact.",
								Enum:        tools.Sections,
							},
						},
						Required: []string{"section"},
					},
				},
			},
		},
	}
}
