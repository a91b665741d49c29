package autoreply

import "strings"

// Canned replies stand in for a human agent until one takes the session
// over. Matching is keyword based, tuned to the product range (industrial
// diesel and gas generators).

func welcomeText(visitorName string) string {
	name := strings.TrimSpace(visitorName)
	if name == "" {
		return "Welcome to support. An agent will be with you shortly — how can we help?"
	}
	return "Hi " + name + ", welcome to support. An agent will be with you shortly — how can we help?"
}

func cannedReply(department, text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "price", "quote", "cost", "buy"):
		return "For pricing we prepare a quote per project. Could you share the required output (kVA) and whether you need a diesel or gas unit?"
	case containsAny(lower, "warranty", "guarantee"):
		return "All generator sets ship with a 24-month or 1000-operating-hour warranty, whichever comes first. A colleague can confirm the terms for your model."
	case containsAny(lower, "maintenance", "service", "repair", "oil"):
		return "Our service team handles periodic maintenance and emergency repairs nationwide. If you share the unit's serial number we can look up its service history."
	case containsAny(lower, "part", "spare", "filter"):
		return "Spare parts are stocked for all current series. Please give us the part or engine number and we'll check availability."
	case containsAny(lower, "install", "commission", "delivery"):
		return "Installation and commissioning are done by our own engineers. Lead time depends on the site; an agent will follow up with details."
	}

	switch department {
	case "sales":
		return "Thanks for reaching out to sales. A representative will pick this up shortly; meanwhile feel free to describe the project and power requirement."
	case "support":
		return "Thanks, your request has reached technical support. An engineer will respond shortly."
	default:
		return "Thanks for your message. A support agent will be with you shortly."
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
