package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// NewBuiltinRegistry creates a registry populated with the standard tool
// set. Notes written by save_note land in notesDir (created on demand);
// an empty notesDir selects the current directory.
func NewBuiltinRegistry(notesDir string) *Registry {
	r := NewRegistry()

	r.Register(Tool{
		Name:        "get_current_time",
		Description: "Get the current date and time.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		Run: func(_ map[string]any) (string, error) {
			return time.Now().Format("2006-01-02 15:04:05"), nil
		},
	})

	r.Register(Tool{
		Name:        "get_current_date",
		Description: "Get the current date in YYYY-MM-DD format.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
		Run: func(_ map[string]any) (string, error) {
			return time.Now().Format("2006-01-02"), nil
		},
	})

	r.Register(Tool{
		Name:        "calculate_math",
		Description: "Safely evaluate a mathematical expression (supports +, -, *, /, ^, parentheses, and functions abs, min, max, pow).",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"expression":{"type":"string","description":"Mathematical expression to evaluate"}},"required":["expression"]}`),
		Run: func(args map[string]any) (string, error) {
			expression, _ := args["expression"].(string)
			result, err := Evaluate(expression)
			if err != nil {
				return fmt.Sprintf("Error calculating '%s': %v", expression, err), nil
			}
			return formatNumber(result), nil
		},
	})

	r.Register(Tool{
		Name:        "format_text",
		Description: "Format text in different styles (upper, lower, title, capitalize).",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string","description":"Text to format"},"style":{"type":"string","description":"Style to apply","enum":["upper","lower","title","capitalize"]}},"required":["text"]}`),
		Run: func(args map[string]any) (string, error) {
			text, _ := args["text"].(string)
			style, _ := args["style"].(string)
			if style == "" {
				style = "upper"
			}
			return FormatText(text, style), nil
		},
	})

	r.Register(Tool{
		Name:        "search_text",
		Description: "Count how many times a pattern occurs in text (case-insensitive).",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"text":{"type":"string","description":"Text to search in"},"pattern":{"type":"string","description":"Pattern to search for"}},"required":["text","pattern"]}`),
		Run: func(args map[string]any) (string, error) {
			text, _ := args["text"].(string)
			pattern, _ := args["pattern"].(string)
			return SearchText(text, pattern), nil
		},
	})

	r.Register(Tool{
		Name:        "save_note",
		Description: "Save a timestamped note to a text file.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"content":{"type":"string","description":"Content of the note"},"title":{"type":"string","description":"Optional title for the note"}},"required":["content"]}`),
		Run: func(args map[string]any) (string, error) {
			content, _ := args["content"].(string)
			title, _ := args["title"].(string)
			name, err := saveNote(notesDir, content, title)
			if err != nil {
				return fmt.Sprintf("Error saving note: %v", err), nil
			}
			return fmt.Sprintf("Note saved to %s", name), nil
		},
	})

	return r
}

// FormatText applies one of the supported case styles to text.
// Unknown styles produce an explanatory message rather than an error,
// since the result is shown to the model.
func FormatText(text, style string) string {
	switch strings.ToLower(style) {
	case "upper":
		return strings.ToUpper(text)
	case "lower":
		return strings.ToLower(text)
	case "title":
		return titleCase(text)
	case "capitalize":
		return capitalize(text)
	default:
		return fmt.Sprintf("Unknown style '%s'. Available: upper, lower, title, capitalize", style)
	}
}

// titleCase upper-cases the first letter of every space-separated word.
func titleCase(text string) string {
	words := strings.Split(text, " ")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(text string) string {
	runes := []rune(strings.ToLower(text))
	if len(runes) == 0 {
		return text
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// SearchText counts case-insensitive occurrences of pattern in text.
// The pattern is treated as a regular expression; invalid patterns fall
// back to a literal substring count.
func SearchText(text, pattern string) string {
	var count int
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		count = strings.Count(strings.ToLower(text), strings.ToLower(pattern))
	} else {
		count = len(re.FindAllString(text, -1))
	}

	switch count {
	case 0:
		return fmt.Sprintf("Pattern '%s' not found in the text.", pattern)
	case 1:
		return fmt.Sprintf("Pattern '%s' found 1 time in the text.", pattern)
	default:
		return fmt.Sprintf("Pattern '%s' found %d times in the text.", pattern, count)
	}
}

// saveNote writes a timestamped note file and returns its name.
func saveNote(dir, content, title string) (string, error) {
	name := fmt.Sprintf("note_%s.txt", time.Now().Format("20060102_150405"))

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}
	fmt.Fprintf(&b, "Date: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	b.WriteString(content)

	path := name
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
		path = filepath.Join(dir, name)
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return name, nil
}

// formatNumber renders a float without a trailing ".000000" for integral
// results.
func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
