package assistant

import (
	"iter"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// blockPattern matches a fenced json block, non-greedy across lines.
var blockPattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Extract yields the actions embedded in text, left to right. A block that is not exactly one
// JSON object with a known "action" (or "kind") discriminant is skipped.
func Extract(text string) iter.Seq[Action] {
	return func(yield func(Action) bool) {
		rest := text
		for {
			loc := blockPattern.FindStringSubmatchIndex(rest)
			if loc == nil {
				return
			}
			body := rest[loc[2]:loc[3]]
			rest = rest[loc[1]:]
			action, ok := parseBlock(body)
			if !ok {
				continue
			}
			if !yield(action) {
				return
			}
		}
	}
}

// ExtractAll collects Extract into a slice.
func ExtractAll(text string) []Action {
	out := make([]Action, 0)
	for a := range Extract(text) {
		out = append(out, a)
	}
	return out
}

func parseBlock(body string) (Action, bool) {
	if !gjson.Valid(body) {
		return nil, false
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return nil, false
	}
	kind, ok := discriminant(doc)
	if !ok {
		return nil, false
	}
	switch kind {
	case KindCreateTask:
		return CreateTask{
			Title:           stringField(doc, "title"),
			DueDate:         stringField(doc, "due_date"),
			Description:     stringField(doc, "description"),
			Category:        stringField(doc, "category"),
			Tags:            stringList(doc.Get("tags")),
			Priority:        doc.Get("priority").Type == gjson.True,
			EstimateMinutes: intField(doc, "estimate_minutes"),
		}, true
	case KindCompleteTask:
		return CompleteTask{TaskTitle: taskTitle(doc)}, true
	case KindArchiveTask:
		return ArchiveTask{TaskTitle: taskTitle(doc)}, true
	case KindUpdateTask:
		return UpdateTask{
			TaskTitle:       taskTitle(doc),
			DueDate:         optionalString(doc, "due_date"),
			Priority:        optionalBool(doc, "priority"),
			Category:        optionalString(doc, "category"),
			Description:     optionalString(doc, "description"),
			EstimateMinutes: intField(doc, "estimate_minutes"),
		}, true
	}
	return nil, false
}

func discriminant(doc gjson.Result) (Kind, bool) {
	for _, key := range []string{"action", "kind"} {
		v := doc.Get(key)
		if v.Type != gjson.String {
			continue
		}
		k := Kind(strings.ToLower(strings.TrimSpace(v.Str)))
		if k.valid() {
			return k, true
		}
	}
	return "", false
}

// taskTitle prefers task_title; title is accepted for models that reuse the create field name.
func taskTitle(doc gjson.Result) string {
	if v := stringField(doc, "task_title"); v != "" {
		return v
	}
	return stringField(doc, "title")
}

func stringField(doc gjson.Result, key string) string {
	v := doc.Get(key)
	if v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.Str)
}

func optionalString(doc gjson.Result, key string) *string {
	v := doc.Get(key)
	if v.Type != gjson.String {
		return nil
	}
	s := strings.TrimSpace(v.Str)
	return &s
}

func optionalBool(doc gjson.Result, key string) *bool {
	v := doc.Get(key)
	switch v.Type {
	case gjson.True, gjson.False:
		b := v.Bool()
		return &b
	}
	return nil
}

func intField(doc gjson.Result, key string) *int {
	v := doc.Get(key)
	if v.Type != gjson.Number {
		return nil
	}
	n := int(v.Int())
	return &n
}

func stringList(v gjson.Result) []string {
	switch {
	case v.Type == gjson.String:
		if s := strings.TrimSpace(v.Str); s != "" {
			return []string{s}
		}
		return nil
	case v.IsArray():
		out := make([]string, 0)
		for _, item := range v.Array() {
			if item.Type != gjson.String {
				continue
			}
			if s := strings.TrimSpace(item.Str); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
