package reminder

import (
	"regexp"
	"strings"
)

// TemplateVars is the fixed set of placeholder names a template may use,
// written in the [nome] bracket syntax the messages are authored in.
var TemplateVars = []string{
	"titulo",
	"tipo_recurso",
	"data_evento",
	"hora_evento",
	"data_criacao",
	"hora_criacao",
	"dias_para_vencimento",
	"nome",
	"ministério",
	"ministérios_colaboradores",
}

var leftoverToken = regexp.MustCompile(`\[[^\[\]]*\]`)

// Render substitutes the named placeholders into the title and body.
// Missing variables substitute the empty string, any bracketed token left
// after substitution is stripped so typos never reach a recipient, and
// both fields are trimmed. Render never fails.
func Render(msg Message, vars map[string]string) Message {
	return Message{
		Title: renderField(msg.Title, vars),
		Body:  renderField(msg.Body, vars),
	}
}

func renderField(s string, vars map[string]string) string {
	for _, name := range TemplateVars {
		s = strings.ReplaceAll(s, "["+name+"]", vars[name])
	}
	s = leftoverToken.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
