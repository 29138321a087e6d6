package script

import "fmt"

// Built-in scripts, written in the wire format producers used historically
// (camelCase completion flags and top-level presentation fields).
var builtinSources = map[string]string{
	"demo": `[
  {"type": "text", "data": "Hello! I'm processing your message...", "style": {"fontWeight": "bold"}, "isComplete": false},
  {"type": "text", "data": "Analyzing your request...", "style": {"fontStyle": "italic"}, "isComplete": false},
  {"type": "image", "data": "/api/placeholder/300/200", "alt": "Analysis image", "style": {"width": "100%"}, "isComplete": false},
  {"type": "text", "data": "Would you like to learn more about this?", "style": {"color": "#4A5568"}, "isComplete": false},
  {"type": "button", "data": "Learn More", "action": {"type": "navigate", "target": "/learn"}, "style": {"backgroundColor": "#4299E1", "color": "#FFFFFF"}, "isComplete": true}
]`,
	"list": `[
  {"type": "text", "data": "Here is what I found:", "metadata": {"formatting": "bold"}, "is_complete": false},
  {"type": "list", "data": ["Chunks arrive in order"], "metadata": {"caption": "Highlights"}, "is_complete": false},
  {"type": "list", "data": ["Chunks arrive in order", "Lists grow as they stream"], "is_complete": false},
  {"type": "list", "data": ["Chunks arrive in order", "Lists grow as they stream", "Duplicates are merged"], "metadata": {"is_list_completed": true}, "is_complete": false},
  {"type": "button", "data": "Read the docs", "metadata": {"url": "https://example.com/docs", "target": "_blank", "icon": {"url": "/api/placeholder/16/16", "position": "right"}}, "is_complete": true}
]`,
	"table": `[
  {"type": "text", "data": "Throughput by region:", "is_complete": false},
  {"type": "table", "data": {"headers": ["Region", "Requests"], "rows": [["eu-west", "1200"]]}, "metadata": {"caption": "Last hour"}, "is_complete": false},
  {"type": "table", "data": {"rows": [["eu-west", "1200"], ["us-east", "3400"]]}, "is_complete": false},
  {"type": "table", "data": {"rows": [["us-east", "3400"], ["ap-south", "800"]]}, "metadata": {"is_table_completed": true}, "is_complete": false},
  {"type": "text", "data": "Totals are approximate.", "metadata": {"formatting": "italic"}, "is_complete": true}
]`,
}

func builtinScripts() map[string]Script {
	out := make(map[string]Script, len(builtinSources))
	for name, src := range builtinSources {
		chunks, err := ParseChunks([]byte(src))
		if err != nil {
			panic(fmt.Sprintf("builtin script %q: %v", name, err))
		}
		out[name] = Script{Name: name, Chunks: chunks}
	}
	return out
}
