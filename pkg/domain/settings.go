package domain

// Provider identifiers.
const (
	ProviderGoogle = "google"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
)

// ProviderSettings configures one LLM provider.
type ProviderSettings struct {
	APIKey  string `json:"apiKey"`
	Model   string `json:"model"`
	BaseURL string `json:"baseUrl,omitempty"`
}

// Settings selects the active provider and holds per-provider configuration.
type Settings struct {
	Provider string           `json:"provider"`
	Google   ProviderSettings `json:"google"`
	Groq     ProviderSettings `json:"groq"`
	OpenAI   ProviderSettings `json:"openai"`
}

// DefaultSettings returns the out-of-the-box provider configuration. API keys
// are intentionally empty.
func DefaultSettings() Settings {
	return Settings{
		Provider: ProviderGoogle,
		Google: ProviderSettings{
			Model: "gemini-2.0-flash",
		},
		Groq: ProviderSettings{
			Model: "llama-3.3-70b-versatile",
		},
		OpenAI: ProviderSettings{
			Model:   "gpt-4-turbo",
			BaseURL: "https://api.openai.com/v1",
		},
	}
}

// Active returns the settings for the currently selected provider.
func (s Settings) Active() ProviderSettings {
	switch s.Provider {
	case ProviderGroq:
		return s.Groq
	case ProviderOpenAI:
		return s.OpenAI
	default:
		return s.Google
	}
}

// ValidProvider reports whether name is a known provider identifier.
func ValidProvider(name string) bool {
	switch name {
	case ProviderGoogle, ProviderGroq, ProviderOpenAI:
		return true
	}
	return false
}
