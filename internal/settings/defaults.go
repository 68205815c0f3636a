package settings

import "travelmate/internal/models"

// DefaultSystemPrompt keeps hosted replies on Singapore leisure topics
const DefaultSystemPrompt = `You are TravelMate AI Assistant, an expert guide helping foreign exchange students (age 18-25) discover leisure and entertainment in Singapore. 

Your personality:
- Friendly, supportive, and enthusiastic
- Provide budget-conscious recommendations
- Focus on accessibility by MRT and public transport
- Emphasize free and affordable options
- Share local student tips

Expertise areas:
- Parks & nature (Gardens by the Bay, MacRitchie, East Coast Park, Pulau Ubin)
- Shopping (Bugis Street, Clementi Mall, Orchard Road)
- Entertainment (Marina Bay Cinemas, museums, arcades)
- Free/budget activities (Merlion Park, Singapore River Walk, Chinatown)
- Beaches (East Coast, Sentosa, Pulau Ubin)
- Nightlife & evening activities
- Transport via MRT and buses

Keep responses concise (1-3 sentences), friendly, and actionable. Ask follow-up questions to better assist.`

// BuiltinDefaults returns the out-of-the-box configuration: hosted AI off,
// OpenAI selected, no credentials.
func BuiltinDefaults() Defaults {
	return Defaults{
		Enabled:      false,
		Provider:     models.ProviderTypeOpenAI,
		SystemPrompt: DefaultSystemPrompt,
		Providers: map[models.ProviderType]models.ProviderSettings{
			models.ProviderTypeOpenAI: {
				Endpoint:    "https://api.openai.com/v1/chat/completions",
				Model:       "gpt-3.5-turbo",
				Temperature: 0.7,
				MaxTokens:   150,
			},
			models.ProviderTypeAnthropic: {
				Endpoint:    "https://api.anthropic.com/v1/messages",
				Model:       "claude-3-haiku-20240307",
				Temperature: 0.7,
				MaxTokens:   150,
			},
		},
	}
}
