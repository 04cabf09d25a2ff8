package config

// Default returns a complete configuration with the firm's built-in corpus knowledge.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Temperature: 0.2,
			MaxTokens:   1200,
			TimeoutMs:   30000,
		},
		Index: IndexConfig{
			Provider:       "azure",
			APIVersion:     "2023-11-01",
			SemanticConfig: "default",
			Fields: []FieldMapping{
				{StandardName: FieldID, RawName: "id"},
				{StandardName: FieldDisplayName, RawName: "filename"},
				{StandardName: FieldBody, RawName: "content"},
				{StandardName: FieldLocator, RawName: "blob_url"},
				{StandardName: FieldNamespace, RawName: "folder"},
				{StandardName: FieldProject, RawName: "project_name"},
				{StandardName: FieldModified, RawName: "last_modified"},
			},
			FilterTooComplexMsg: []string{"too complex", "too many", "exceeds the maximum", "filter is too"},
		},
		HTTP: HTTPClientConfig{
			TimeoutMs:              20000,
			Retry:                  1,
			BackoffMinMs:           100,
			BackoffMaxMs:           800,
			MaxConsecutiveFailures: 5,
			CircuitOpenSeconds:     10,
		},
		Namespaces: NamespaceConfig{
			Categories: map[string][]string{
				"policy":    {"Health & Safety", "IT Policies", "HR Policies", "Company Policies", "Policies"},
				"procedure": {"H2H", "How to Handbook", "Procedures", "Technical Procedures", "Admin Procedures"},
				"standard":  {"NZ Standards", "Standards", "Engineering Standards", "Technical Library"},
				"project":   {"Projects"},
				"client":    {"Clients", "Client Information", "Contact Information"},
				"general":   {},
			},
			Templates:  []string{"Templates", "Forms", "Proformas"},
			Exclusions: []string{"archive", "superseded", "superceded", "obsolete", "old-version", "old version", "trash"},
			Years:      YearRange{First: 2015, Last: 2027},
		},
		Normalizer: NormalizerConfig{
			Acronyms: map[string]string{
				"h&s":   "health and safety",
				"hs":    "health and safety",
				"hr":    "human resources",
				"nzs":   "new zealand standard",
				"nzbc":  "new zealand building code",
				"ps1":   "producer statement design",
				"ps3":   "producer statement construction",
				"ps4":   "producer statement construction review",
				"rfi":   "request for information",
				"qa":    "quality assurance",
				"sls":   "serviceability limit state",
				"uls":   "ultimate limit state",
				"lvl":   "laminated veneer lumber",
				"clt":   "cross laminated timber",
				"rc":    "reinforced concrete",
				"cpeng": "chartered professional engineer",
				"h2h":   "how to handbook",
				"eq":    "earthquake",
				"dsa":   "detailed seismic assessment",
				"isa":   "initial seismic assessment",
			},
			Typos: map[string]string{
				"welness":    "wellness",
				"safty":      "safety",
				"proceedure": "procedure",
				"standrd":    "standard",
				"clent":      "client",
			},
			DomainVocabulary: []string{
				"policy", "policies", "procedure", "procedures", "guideline", "guidelines",
				"standard", "standards", "template", "templates", "form", "wellness", "wellbeing",
				"safety", "health", "leave", "expense", "privacy", "harassment", "induction",
				"timesheet", "project", "projects", "client", "clients", "contact", "builder",
				"contractor", "council", "consent", "seismic", "foundation", "retaining",
				"timber", "steel", "concrete", "geotechnical", "structural", "drawing",
				"calculation", "report", "specification", "spreadsheet",
			},
			EnablePhrasings: true,
			MaxPhrasings:    5,
			PhrasingTimeout: 8000,
		},
		Classifier: ClassifierConfig{
			LLMThreshold: 0.8,
			EnableLLM:    true,
			TimeoutMs:    8000,
		},
		Retrieval: RetrievalConfig{
			TopN:               30,
			MinSemanticResults: 5,
			SemanticTimeoutMs:  20000,
			KeywordTimeoutMs:   20000,
			KeywordVariants:    2,
		},
		Formatter: FormatterConfig{
			TotalChars:       8000,
			PerDocumentChars: 3500,
			MaxDocuments: map[string]int{
				"policy":    5,
				"procedure": 6,
				"standard":  6,
				"project":   8,
				"client":    8,
				"general":   10,
			},
			SuiteFiles: SuiteFilesConfig{
				BaseURL:    "https://dtce.sharepoint.com",
				SitePath:   "/sites/SuiteFiles",
				Containers: []string{"suitefiles", "dtce-documents"},
			},
		},
		Prompt: PromptConfig{
			Budget:          24000,
			BudgetUnit:      "chars",
			Encoding:        "cl100k_base",
			MaxHistoryTurns: 6,
			MaxTurnChars:    1000,
			FirmName:        "DTCE",
		},
		Cache: CacheConfig{
			Store:      "memory",
			MaxEntries: 512,
			TTLSeconds: 600,
			Redis:      RedisConfig{KeyPrefix: "dtce:rag:"},
		},
		Session: SessionConfig{
			Store:      "memory",
			TTLSeconds: 86400,
			MaxTurns:   20,
			Redis:      RedisConfig{KeyPrefix: "dtce:sess:"},
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}
