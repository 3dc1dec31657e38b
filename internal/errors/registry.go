package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (E001-E099)
	// ============================================

	"E001": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create a hotbridge.json in the project root, or pass --config.",
	},
	"E002": {
		Category:   CategoryConfig,
		Message:    "Configuration file is not valid JSON",
		Suggestion: "Check hotbridge.json for syntax errors (trailing commas, unquoted keys).",
	},
	"E003": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration value",
		Suggestion: "maxBodyBytes must be non-negative, ports must be 1-65535, and apiPrefix must start with '/'.",
	},

	// ============================================
	// Load Errors (E101-E139)
	// ============================================

	"E101": {
		Category:   CategoryLoad,
		Message:    "Handler module failed to compile",
		Suggestion: "Fix the build errors above; the previous handler keeps serving until a build succeeds.",
	},
	"E102": {
		Category:   CategoryLoad,
		Message:    "Handler plugin failed to open",
		Suggestion: "Plugins require the same Go toolchain and dependency versions as the dev server.",
	},
	"E103": {
		Category:   CategoryLoad,
		Message:    "Handler symbol missing or has the wrong type",
		Suggestion: "Export `var Handler gateway.Handler` (or a gateway.HandlerFunc) from the entry package.",
	},

	// ============================================
	// Process Errors (E141-E159)
	// ============================================

	"E141": {
		Category:   CategoryProcess,
		Message:    "Backend process failed to spawn",
		Suggestion: "Check the backend command and that the backend port is free.",
	},
	"E142": {
		Category:   CategoryProcess,
		Message:    "Backend process exited unexpectedly",
		Suggestion: "The backend stays stopped until the next file change triggers a restart.",
	},

	// ============================================
	// Watch Errors (E161-E179)
	// ============================================

	"E161": {
		Category:   CategoryWatch,
		Message:    "Watch path is not readable",
		Suggestion: "Check the dev.watch entries in hotbridge.json.",
	},

	// ============================================
	// CLI Errors (E181-E199)
	// ============================================

	"E181": {
		Category:   CategoryCLI,
		Message:    "Project is already initialized",
		Suggestion: "Edit the existing hotbridge.json instead, or remove it and rerun init.",
	},
	"E182": {
		Category:   CategoryCLI,
		Message:    "Invalid project name",
		Suggestion: "Use lowercase letters, numbers, and hyphens.",
	},
}
