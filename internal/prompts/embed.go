package prompts

import (
	"embed"
)

//go:embed templates/*.md
var fs embed.FS

// GetTemplate returns the raw content of a prompt template file by name
func GetTemplate(name string) ([]byte, error) {
	return fs.ReadFile("templates/" + name)
}
