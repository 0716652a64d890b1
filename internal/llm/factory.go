package llm

// New builds the provider named in configuration. Unknown names fall
// back to the canned provider so the assistant still answers something.
func New(name string, cfg Config) Provider {
	switch name {
	case "openai":
		return NewOpenAIProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	default:
		return NewCannedProvider()
	}
}
