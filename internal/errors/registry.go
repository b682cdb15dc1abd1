package errors

import "sort"

// ErrorTemplate defines a registered error code.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

var registry = map[string]ErrorTemplate{
	// Configuration (N100-N199)
	"N101": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Run 'nodesync serve' without --config to use defaults, or create nodesync.yaml",
	},
	"N102": {
		Category:   CategoryConfig,
		Message:    "Configuration file is not valid YAML",
		Detail:     "The file could not be decoded into the nodesync configuration schema.",
		Suggestion: "Check indentation and that every key is spelled as documented",
	},
	"N103": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"N104": {
		Category: CategoryConfig,
		Message:  "Could not write configuration file",
	},

	// Snapshots (N200-N299)
	"N201": {
		Category: CategorySnapshot,
		Message:  "Could not read snapshot",
	},
	"N202": {
		Category:   CategorySnapshot,
		Message:    "Invalid snapshot",
		Detail:     "The document is not a nodesync snapshot or refers to nodes and features it does not define.",
		Suggestion: "Snapshots are written by the server when a UI is closed; do not edit them by hand",
	},
	"N203": {
		Category: CategorySnapshot,
		Message:  "Could not connect to snapshot store",
	},

	// Server (N300-N399)
	"N301": {
		Category: CategoryServer,
		Message:  "Server failed",
	},
	"N302": {
		Category:   CategoryServer,
		Message:    "Invalid update filter expression",
		Detail:     "The filter is a CEL expression over the string variable key and must evaluate to a bool.",
		Suggestion: `Try something like: key in ["name", "email"]`,
	},
}

// GetAllCodes returns all registered codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
