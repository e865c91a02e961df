package prompt

import (
	"fmt"
	"strings"
)

// ParseArgs converts "key:value" pairs into a replacement map.
// "\:" and "\"" in values are unescaped; "input" is reserved.
func ParseArgs(args []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
			arg = strings.Trim(arg, `"`)
		}

		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid argument format: %s. Expected format: key:value", arg)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.ReplaceAll(value, `\:`, ":")
		value = strings.ReplaceAll(value, `\"`, `"`)

		if key == "input" {
			return nil, fmt.Errorf("'input' is a reserved keyword and cannot be used as a key")
		}
		result[key] = value
	}
	return result, nil
}

// Render substitutes {{input}} and every {{key}} from args into the
// template and returns the prompt text. A non-empty system part is folded
// in front of the user part since the model receives a single prompt.
func (t *Template) Render(input string, args map[string]string) string {
	replacements := make([]string, 0, 2*(len(args)+1))
	replacements = append(replacements, "{{input}}", input)
	for key, value := range args {
		replacements = append(replacements, "{{"+key+"}}", value)
	}
	r := strings.NewReplacer(replacements...)

	user := r.Replace(t.User)
	system := r.Replace(t.System)
	if strings.TrimSpace(system) == "" {
		return user
	}
	return fmt.Sprintf("System: %s\n\nUser: %s", system, user)
}
