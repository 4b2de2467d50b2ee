// Package tools maps model-issued tool calls onto the project store, the
// sandbox runtime and the console buffer, and declares the tool schema the
// model providers advertise.
package tools

// Tool names the model may invoke.
const (
	ToolReadFiles       = "read_files"
	ToolUpdateFile      = "update_file"
	ToolPatchFile       = "patch_file"
	ToolScreenshot      = "screenshot_website"
	ToolValidate        = "validate_functionality"
	ToolReadConsoleLogs = "read_console_logs"
)

// Property describes one parameter in a tool's input schema.
type Property struct {
	Type        string
	Description string
	Enum        []string
}

// Def is a provider-neutral tool declaration. Provider bindings convert it
// to their native function-declaration format.
type Def struct {
	Name        string
	Description string
	Properties  map[string]Property
	Required    []string
}

var fileTargets = []string{"html", "css", "javascript"}

// Defs returns the declarations for the full tool set, in a stable order.
func Defs() []Def {
	return []Def{
		{
			Name:        ToolReadFiles,
			Description: "Read the full content of the current project files (index.html, styles.css, script.js). Use this to inspect the code.",
		},
		{
			Name:        ToolUpdateFile,
			Description: "Completely replace the content of a single file",
			Properties: map[string]Property{
				"target":  {Type: "string", Enum: fileTargets, Description: "The file to update"},
				"content": {Type: "string", Description: "The full new content of the file"},
			},
			Required: []string{"target", "content"},
		},
		{
			Name:        ToolPatchFile,
			Description: "Replace a specific segment of code within a file",
			Properties: map[string]Property{
				"target":             {Type: "string", Enum: fileTargets, Description: "The file to patch"},
				"search_string":      {Type: "string", Description: "The exact code segment to find and replace"},
				"replacement_string": {Type: "string", Description: "The new code to insert in place of the search string"},
			},
			Required: []string{"target", "search_string", "replacement_string"},
		},
		{
			Name:        ToolScreenshot,
			Description: "Take a visual screenshot of the current rendered website project to analyze the UI.",
		},
		{
			Name:        ToolValidate,
			Description: "Execute a JavaScript test script against the current website to verify functionality.",
			Properties: map[string]Property{
				"test_script": {Type: "string", Description: "JavaScript code that asserts conditions. Throw an Error if the test fails."},
			},
			Required: []string{"test_script"},
		},
		{
			Name:        ToolReadConsoleLogs,
			Description: "Read the console logs captured from the live preview, including uncaught errors.",
		},
	}
}
